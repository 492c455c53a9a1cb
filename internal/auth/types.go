package auth

import (
	"strings"
	"time"
)

// Status is the account lifecycle state. SUSPENDED is entered automatically by
// the lockout counter; BANNED and DELETED are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
	StatusBanned    Status = "banned"
	StatusDeleted   Status = "deleted"
)

// Terminal reports whether no transition out of the status is permitted.
func (s Status) Terminal() bool {
	return s == StatusBanned || s == StatusDeleted
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusInactive, StatusSuspended, StatusBanned, StatusDeleted:
		return true
	}
	return false
}

// RoleAdmin is the capability that overrides ownership checks and gates the
// administrative account endpoints.
const RoleAdmin = "admin"

// Principal is the identity record owned by the PrincipalStore. The auth core
// reads it and requests targeted mutations of the lockout fields; it never
// persists principals itself.
type Principal struct {
	ID               string     `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	Status           Status     `json:"status"`
	Roles            []string   `json:"roles"`
	Enabled          bool       `json:"enabled"`
	AccountLocked    bool       `json:"account_locked"`
	FailedLoginCount int        `json:"failed_login_count"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// HasRole reports whether the principal carries the given role (normalized).
func (p *Principal) HasRole(role string) bool {
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		return false
	}
	for _, r := range NormalizeRoles(p.Roles) {
		if r == role {
			return true
		}
	}
	return false
}

// TokenPair represents access and refresh tokens along with their expirations.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// NormalizeRoles lower-cases, trims and deduplicates role names while
// preserving first-seen order.
func NormalizeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(roles))
	var normalized []string
	for _, role := range roles {
		role = strings.TrimSpace(strings.ToLower(role))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized
}
