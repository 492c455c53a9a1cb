package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType distinguishes access tokens (resource requests) from refresh
// tokens (the refresh endpoint only). Presenting the wrong kind is a distinct,
// detectable error, never silent acceptance.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the signed token payload. Subject carries the username; refresh
// tokens deliberately omit email and roles to limit blast radius if leaked.
type Claims struct {
	UserID    string    `json:"userId,omitempty"`
	Email     string    `json:"email,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	TokenType TokenType `json:"type"`
	jwt.RegisteredClaims
}

// Codec signs and verifies tokens with a single symmetric HS256 secret loaded
// once at construction. Both operations are pure functions over the immutable
// secret: no I/O, safe for concurrent use from any number of goroutines.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// CodecOption configures Codec behavior.
type CodecOption func(*Codec)

// WithCodecClock overrides the time source (useful for expiry tests).
func WithCodecClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec constructs a Codec. The secret is required and never rotated
// mid-process.
func NewCodec(secret []byte, issuer string, opts ...CodecOption) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	c := &Codec{
		secret: secret,
		issuer: strings.TrimSpace(issuer),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issuer returns the issuer claim the codec expects.
func (c *Codec) Issuer() string { return c.issuer }

// Encode signs the claims with HS256 and returns the compact token string.
func (c *Codec) Encode(claims *Claims) (string, error) {
	if claims == nil {
		return "", errors.New("auth: claims are required")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and required claims. It fails with
// ErrTokenExpired specifically when the expiry has passed and ErrTokenInvalid
// for every other defect; the refresh flow depends on callers being able to
// tell "try refreshing" from "give up".
func (c *Codec) Decode(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenInvalid
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if err := c.validateClaims(claims); err != nil {
		return nil, ErrTokenInvalid
	}
	claims.Roles = NormalizeRoles(claims.Roles)
	return claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return c.secret, nil
}

func (c *Codec) validateClaims(claims *Claims) error {
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if c.issuer != "" && claims.Issuer != c.issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if claims.TokenType != TokenTypeAccess && claims.TokenType != TokenTypeRefresh {
		return errors.New("unknown token type")
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return errors.New("timestamps missing")
	}
	if !claims.ExpiresAt.Time.After(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(c.now().Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	return nil
}
