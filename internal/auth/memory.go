package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"questboard.org/internal/ids"
)

// MemoryStore implements PrincipalStore in process memory. It backs dev mode
// and tests; all mutations are serialized by a single mutex, which satisfies
// the atomicity contract of RecordLoginFailure for one instance.
type MemoryStore struct {
	mu         sync.Mutex
	byID       map[string]*Principal
	byUsername map[string]string
	byEmail    map[string]string
}

var _ PrincipalStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]*Principal),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

// Create inserts a principal, assigning an id when empty.
func (s *MemoryStore) Create(ctx context.Context, p *Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.TrimSpace(p.Username)
	email := strings.TrimSpace(strings.ToLower(p.Email))
	if _, ok := s.byUsername[username]; ok {
		return ErrAlreadyExists
	}
	if _, ok := s.byEmail[email]; ok {
		return ErrAlreadyExists
	}
	if p.ID == "" {
		p.ID = ids.New()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.Username = username
	p.Email = email

	stored := clonePrincipal(p)
	s.byID[p.ID] = stored
	s.byUsername[username] = p.ID
	s.byEmail[email] = p.ID
	return nil
}

func (s *MemoryStore) Find(ctx context.Context, id string) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(id)
}

func (s *MemoryStore) FindByUsername(ctx context.Context, username string) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byUsername[strings.TrimSpace(username)]
	if !ok {
		return nil, ErrNotFound
	}
	return s.findLocked(id)
}

func (s *MemoryStore) FindByLogin(ctx context.Context, usernameOrEmail string) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	login := strings.TrimSpace(usernameOrEmail)
	if id, ok := s.byUsername[login]; ok {
		return s.findLocked(id)
	}
	if id, ok := s.byEmail[strings.ToLower(login)]; ok {
		return s.findLocked(id)
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) RecordLoginFailure(ctx context.Context, id string, threshold int) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.FailedLoginCount++
	if p.FailedLoginCount >= threshold && !p.Status.Terminal() {
		p.Status = StatusSuspended
		p.AccountLocked = true
	}
	p.UpdatedAt = time.Now().UTC()
	return clonePrincipal(p), nil
}

func (s *MemoryStore) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.FailedLoginCount = 0
	stamp := at
	p.LastLoginAt = &stamp
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Unlock(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if p.Status.Terminal() || p.DeletedAt != nil {
		return ErrInvalidTransition
	}
	if p.Status != StatusSuspended && !p.AccountLocked {
		return ErrInvalidTransition
	}
	p.Status = StatusActive
	p.AccountLocked = false
	p.FailedLoginCount = 0
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Ban(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if p.Status == StatusDeleted || p.DeletedAt != nil {
		return ErrInvalidTransition
	}
	p.Status = StatusBanned
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if p.DeletedAt != nil {
		return nil
	}
	stamp := at
	p.Status = StatusDeleted
	p.DeletedAt = &stamp
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) findLocked(id string) (*Principal, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePrincipal(p), nil
}

// clonePrincipal returns a deep copy so callers never share mutable state
// with the store.
func clonePrincipal(p *Principal) *Principal {
	out := *p
	if p.Roles != nil {
		out.Roles = append([]string(nil), p.Roles...)
	}
	if p.LastLoginAt != nil {
		t := *p.LastLoginAt
		out.LastLoginAt = &t
	}
	if p.DeletedAt != nil {
		t := *p.DeletedAt
		out.DeletedAt = &t
	}
	return &out
}
