package quests

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Service defines quest-board operations. Mutations take the acting
// principal; override lets admins act on quests they do not own.
type Service interface {
	Create(ctx context.Context, ownerID string, in Draft) (Quest, error)
	Get(ctx context.Context, id string) (Quest, error)
	List(ctx context.Context, limit int, afterSeq uint64) ([]Quest, uint64, error)
	Update(ctx context.Context, id, actorID string, override bool, in Draft) (Quest, error)
	Delete(ctx context.Context, id, actorID string, override bool) error
	Claim(ctx context.Context, id, actorID string) (Quest, error)
}

// InMemory implements Service with in-process concurrency safety.
// NOTE: Replace with durable storage later (Postgres).
type InMemory struct {
	mu    sync.RWMutex
	items map[string]*Quest
	seq   uint64
}

// NewInMemory creates an empty quest board.
func NewInMemory() *InMemory {
	return &InMemory{items: make(map[string]*Quest)}
}

func (s *InMemory) Create(ctx context.Context, ownerID string, in Draft) (Quest, error) {
	if ownerID == "" {
		return Quest{}, ErrNotOwner
	}
	if err := in.validate(); err != nil {
		return Quest{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	now := time.Now().UTC()
	q := &Quest{
		ID:          newID(),
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
		Reward:      in.Reward,
		Status:      StatusOpen,
		Sequence:    s.seq,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.items[q.ID] = q
	return *q, nil
}

func (s *InMemory) Get(ctx context.Context, id string) (Quest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.items[id]
	if !ok {
		return Quest{}, ErrNotFound
	}
	return *q, nil
}

func (s *InMemory) List(ctx context.Context, limit int, afterSeq uint64) ([]Quest, uint64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := make([]*Quest, 0, len(s.items))
	for _, q := range s.items {
		if q.Sequence > afterSeq {
			ordered = append(ordered, q)
		}
	}
	// map order is random; restore insertion order via sequence
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })

	var res []Quest
	var last uint64
	for _, q := range ordered {
		res = append(res, *q)
		last = q.Sequence
		if len(res) >= limit {
			break
		}
	}
	return res, last, nil
}

func (s *InMemory) Update(ctx context.Context, id, actorID string, override bool, in Draft) (Quest, error) {
	if err := in.validate(); err != nil {
		return Quest{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.items[id]
	if !ok {
		return Quest{}, ErrNotFound
	}
	if q.OwnerID != actorID && !override {
		return Quest{}, ErrNotOwner
	}
	q.Title = in.Title
	q.Description = in.Description
	q.Reward = in.Reward
	q.UpdatedAt = time.Now().UTC()
	return *q, nil
}

func (s *InMemory) Delete(ctx context.Context, id, actorID string, override bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	if q.OwnerID != actorID && !override {
		return ErrNotOwner
	}
	delete(s.items, id)
	return nil
}

func (s *InMemory) Claim(ctx context.Context, id, actorID string) (Quest, error) {
	if actorID == "" {
		return Quest{}, ErrNotOwner
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.items[id]
	if !ok {
		return Quest{}, ErrNotFound
	}
	if q.Status != StatusOpen {
		return Quest{}, ErrNotOpen
	}
	q.Status = StatusClaimed
	q.ClaimedBy = actorID
	q.UpdatedAt = time.Now().UTC()
	return *q, nil
}
