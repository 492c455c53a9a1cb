package auth

import (
	"sync"
	"time"
)

// Revoker is the server-side denylist consulted by the authentication
// pipeline. Tokens themselves are stateless; revocation is what gives logout
// and logout-all real semantics for otherwise-unexpired tokens. Single tokens
// are identified by their jti claim; logout-all records an issued-before
// cutoff per subject.
type Revoker interface {
	// RevokeToken revokes the single token identified by subject + token id.
	RevokeToken(subject, tokenID string)
	// RevokeAll revokes every token for subject issued before the cutoff.
	RevokeAll(subject string, before time.Time)
	IsRevoked(subject, tokenID string, issuedAt time.Time) bool
}

// MemoryRevoker is an in-process Revoker. It is correct for a single
// instance; replicated deployments need a shared store behind the Revoker
// interface instead. Entries are pruned once they outlive the retention
// window, which must be at least the longest token lifetime.
type MemoryRevoker struct {
	mu        sync.RWMutex
	retention time.Duration
	now       func() time.Time

	// subject -> token id -> when the revocation was recorded
	tokens map[string]map[string]time.Time
	// subject -> logout-all cutoff
	cutoffs map[string]time.Time
}

// NewMemoryRevoker constructs a MemoryRevoker with the given retention.
func NewMemoryRevoker(retention time.Duration) *MemoryRevoker {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &MemoryRevoker{
		retention: retention,
		now:       time.Now,
		tokens:    make(map[string]map[string]time.Time),
		cutoffs:   make(map[string]time.Time),
	}
}

// RevokeToken records a single-token revocation.
func (r *MemoryRevoker) RevokeToken(subject, tokenID string) {
	if subject == "" || tokenID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.tokens[subject]
	if !ok {
		set = make(map[string]time.Time, 1)
		r.tokens[subject] = set
	}
	set[tokenID] = r.now()
	r.pruneLocked()
}

// RevokeAll records a logout-all cutoff for the subject.
func (r *MemoryRevoker) RevokeAll(subject string, before time.Time) {
	if subject == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.cutoffs[subject]; !ok || before.After(existing) {
		r.cutoffs[subject] = before
	}
	r.pruneLocked()
}

// IsRevoked reports whether the token has been revoked, either individually
// by its id or by a logout-all cutoff over its issued-at.
func (r *MemoryRevoker) IsRevoked(subject, tokenID string, issuedAt time.Time) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cutoff, ok := r.cutoffs[subject]; ok && issuedAt.Before(cutoff) {
		return true
	}
	if set, ok := r.tokens[subject]; ok && tokenID != "" {
		if _, ok := set[tokenID]; ok {
			return true
		}
	}
	return false
}

// pruneLocked drops entries older than the retention window. Any token they
// referred to has expired on its own by then. Caller holds the write lock.
func (r *MemoryRevoker) pruneLocked() {
	horizon := r.now().Add(-r.retention)
	for subject, set := range r.tokens {
		for id, recordedAt := range set {
			if recordedAt.Before(horizon) {
				delete(set, id)
			}
		}
		if len(set) == 0 {
			delete(r.tokens, subject)
		}
	}
	for subject, cutoff := range r.cutoffs {
		if cutoff.Before(horizon) {
			delete(r.cutoffs, subject)
		}
	}
}
