package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// CredentialHasher abstracts password hashing. The auth core never sees raw
// hash formats; it only asks the collaborator to produce and verify them.
type CredentialHasher interface {
	Hash(password string) (string, error)
	// Verify returns ErrInvalidCredentials when the password does not match.
	Verify(hash, password string) error
}

// BcryptHasher implements CredentialHasher with bcrypt.
type BcryptHasher struct {
	// Cost overrides bcrypt.DefaultCost when > 0. Tests use bcrypt.MinCost.
	Cost int
}

func (h BcryptHasher) cost() int {
	if h.Cost > 0 {
		return h.Cost
	}
	return bcrypt.DefaultCost
}

// Hash hashes a plaintext password.
func (h BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost())
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify compares a plaintext password with a stored hash.
func (h BcryptHasher) Verify(hash, password string) error {
	if hash == "" {
		return ErrInvalidCredentials
	}
	// A malformed stored hash is indistinguishable from a mismatch to callers.
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
