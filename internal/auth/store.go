package auth

import (
	"context"
	"time"
)

// PrincipalStore is the persistence collaborator for identity records. The
// auth core treats it as external: lookups are synchronous calls, a store
// failure propagates as a hard error, and retry policy lives behind this
// interface, never in the core.
//
// RecordLoginFailure is the one mutation with a concurrency contract: the
// counter increment and the SUSPENDED transition must happen as a single
// atomic read-modify-write so that concurrent failed attempts on the same
// account never under-count. SQL-backed implementations do this in one UPDATE;
// the in-memory implementation serializes with a mutex.
type PrincipalStore interface {
	Find(ctx context.Context, id string) (*Principal, error)
	FindByUsername(ctx context.Context, username string) (*Principal, error)
	// FindByLogin resolves either a username or an email address.
	FindByLogin(ctx context.Context, usernameOrEmail string) (*Principal, error)
	Create(ctx context.Context, p *Principal) error

	// RecordLoginFailure atomically increments the failed-login counter and,
	// when the new count reaches threshold on a non-terminal account, flips
	// the account to SUSPENDED with account_locked set in the same write.
	// Returns the updated principal.
	RecordLoginFailure(ctx context.Context, id string, threshold int) (*Principal, error)

	// RecordLoginSuccess resets the failed-login counter to zero and stamps
	// the last successful login time.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error

	// Unlock moves a SUSPENDED account back to ACTIVE and resets the counter.
	// Returns ErrInvalidTransition when the account is not suspended or is in
	// a terminal state.
	Unlock(ctx context.Context, id string) error

	// Ban marks the account BANNED. Returns ErrInvalidTransition when the
	// account is already deleted.
	Ban(ctx context.Context, id string) error

	// MarkDeleted marks the account DELETED and stamps deleted_at. Deletion is
	// permitted from any state and is terminal.
	MarkDeleted(ctx context.Context, id string, at time.Time) error
}
