package auth

import "errors"

// Error taxonomy surfaced by the auth core. The HTTP layer maps each kind to a
// transport status; nothing here carries internal causes to the client.
var (
	ErrInvalidCredentials     = errors.New("auth: invalid credentials")
	ErrAccountLocked          = errors.New("auth: account locked")
	ErrAccountBanned          = errors.New("auth: account banned")
	ErrAccountDeleted         = errors.New("auth: account deleted")
	ErrTokenInvalid           = errors.New("auth: invalid token")
	ErrTokenExpired           = errors.New("auth: token expired")
	ErrTokenTypeMismatch      = errors.New("auth: token type mismatch")
	ErrInsufficientRole       = errors.New("auth: insufficient role")
	ErrOwnershipViolation     = errors.New("auth: resource ownership violation")
	ErrAuthenticationRequired = errors.New("auth: authentication required")
)

// Store-level errors.
var (
	ErrNotFound          = errors.New("auth: not found")
	ErrAlreadyExists     = errors.New("auth: already exists")
	ErrInvalidTransition = errors.New("auth: invalid status transition")
)
