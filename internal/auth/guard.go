package auth

import (
	"context"
	"fmt"
	"time"

	"questboard.org/internal/obs"
)

// DefaultLockoutThreshold is the number of cumulative failed login attempts
// that suspends an account.
const DefaultLockoutThreshold = 5

// Guard evaluates whether an account is permitted to authenticate and drives
// the lockout state machine. It holds no state of its own: every decision is
// made against a freshly loaded principal, since account standing can change
// between a token's issuance and its use.
type Guard struct {
	store     PrincipalStore
	threshold int
	now       func() time.Time
}

// GuardOption configures Guard behavior.
type GuardOption func(*Guard)

// WithLockoutThreshold overrides the default failed-attempt threshold.
func WithLockoutThreshold(n int) GuardOption {
	return func(g *Guard) {
		if n > 0 {
			g.threshold = n
		}
	}
}

// WithGuardClock overrides the time source (useful for tests).
func WithGuardClock(fn func() time.Time) GuardOption {
	return func(g *Guard) {
		if fn != nil {
			g.now = fn
		}
	}
}

// NewGuard constructs a Guard over the given store.
func NewGuard(store PrincipalStore, opts ...GuardOption) *Guard {
	g := &Guard{
		store:     store,
		threshold: DefaultLockoutThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CanAuthenticate reports whether the account may authenticate right now.
// It returns nil, or the taxonomy error describing why not. Terminal states
// are checked first so a banned-and-locked account reports the ban.
func (g *Guard) CanAuthenticate(p *Principal) error {
	if p == nil {
		return ErrNotFound
	}
	if p.DeletedAt != nil || p.Status == StatusDeleted {
		return ErrAccountDeleted
	}
	if p.Status == StatusBanned {
		return ErrAccountBanned
	}
	if p.AccountLocked || p.Status == StatusSuspended {
		return ErrAccountLocked
	}
	// Disabled and inactive accounts are rejected like locked ones; the
	// taxonomy has no separate kind for them.
	if !p.Enabled || (p.Status != StatusActive && p.Status != StatusPending) {
		return ErrAccountLocked
	}
	return nil
}

// RecordFailure registers one failed login attempt. The increment and the
// SUSPENDED transition happen atomically inside the store. Returns the
// principal as it stands after the write.
func (g *Guard) RecordFailure(ctx context.Context, p *Principal) (*Principal, error) {
	updated, err := g.store.RecordLoginFailure(ctx, p.ID, g.threshold)
	if err != nil {
		return nil, fmt.Errorf("record login failure: %w", err)
	}
	if updated.AccountLocked && !p.AccountLocked {
		obs.Lockout()
	}
	return updated, nil
}

// RecordSuccess resets the failed-login counter after a successful
// authentication and stamps the login time.
func (g *Guard) RecordSuccess(ctx context.Context, p *Principal) error {
	if err := g.store.RecordLoginSuccess(ctx, p.ID, g.now().UTC()); err != nil {
		return fmt.Errorf("record login success: %w", err)
	}
	return nil
}

// Unlock is the explicit administrative action that returns a SUSPENDED
// account to ACTIVE and resets the counter. It refuses terminal states.
func (g *Guard) Unlock(ctx context.Context, id string) error {
	p, err := g.store.Find(ctx, id)
	if err != nil {
		return err
	}
	if p.Status.Terminal() || p.DeletedAt != nil {
		return ErrInvalidTransition
	}
	if p.Status != StatusSuspended && !p.AccountLocked {
		return ErrInvalidTransition
	}
	return g.store.Unlock(ctx, id)
}

// Ban is the explicit administrative action that marks an account BANNED.
// BANNED is terminal; banning a deleted account is invalid.
func (g *Guard) Ban(ctx context.Context, id string) error {
	p, err := g.store.Find(ctx, id)
	if err != nil {
		return err
	}
	if p.Status == StatusDeleted || p.DeletedAt != nil {
		return ErrInvalidTransition
	}
	if p.Status == StatusBanned {
		return nil
	}
	return g.store.Ban(ctx, id)
}

// Delete is the explicit administrative action that marks an account DELETED.
// Deletion is permitted from any state and is terminal.
func (g *Guard) Delete(ctx context.Context, id string) error {
	p, err := g.store.Find(ctx, id)
	if err != nil {
		return err
	}
	if p.Status == StatusDeleted || p.DeletedAt != nil {
		return nil
	}
	return g.store.MarkDeleted(ctx, id, g.now().UTC())
}
