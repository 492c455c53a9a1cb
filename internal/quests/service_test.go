package quests

import (
	"context"
	"sync"
	"testing"
)

func TestCreateAndGet(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	q, err := s.Create(ctx, "owner-1", Draft{Title: "Slay the dragon", Reward: 500})
	if err != nil {
		t.Fatal(err)
	}
	if q.Status != StatusOpen {
		t.Fatalf("expected open quest, got %s", q.Status)
	}
	got, err := s.Get(ctx, q.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.OwnerID != "owner-1" || got.Title != "Slay the dragon" {
		t.Fatalf("unexpected quest: %#v", got)
	}
}

func TestCreateValidation(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if _, err := s.Create(ctx, "owner-1", Draft{Title: "  "}); err != ErrInvalidTitle {
		t.Fatalf("expected ErrInvalidTitle, got %v", err)
	}
	if _, err := s.Create(ctx, "owner-1", Draft{Title: "x", Reward: -1}); err != ErrInvalidReward {
		t.Fatalf("expected ErrInvalidReward, got %v", err)
	}
}

func TestUpdateOwnership(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	q, _ := s.Create(ctx, "owner-1", Draft{Title: "Fetch herbs", Reward: 10})

	if _, err := s.Update(ctx, q.ID, "intruder", false, Draft{Title: "Stolen", Reward: 10}); err != ErrNotOwner {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	upd, err := s.Update(ctx, q.ID, "owner-1", false, Draft{Title: "Fetch rare herbs", Reward: 25})
	if err != nil {
		t.Fatal(err)
	}
	if upd.Title != "Fetch rare herbs" || upd.Reward != 25 {
		t.Fatalf("update not applied: %#v", upd)
	}

	// Admin override mutates without ownership.
	if _, err := s.Update(ctx, q.ID, "admin-9", true, Draft{Title: "Moderated", Reward: 25}); err != nil {
		t.Fatalf("override update failed: %v", err)
	}
}

func TestDeleteOwnership(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	q, _ := s.Create(ctx, "owner-1", Draft{Title: "Guard duty", Reward: 5})

	if err := s.Delete(ctx, q.ID, "intruder", false); err != ErrNotOwner {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := s.Delete(ctx, q.ID, "owner-1", false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, q.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestClaim(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	q, _ := s.Create(ctx, "owner-1", Draft{Title: "Escort caravan", Reward: 100})

	claimed, err := s.Claim(ctx, q.ID, "hero-7")
	if err != nil {
		t.Fatal(err)
	}
	if claimed.Status != StatusClaimed || claimed.ClaimedBy != "hero-7" {
		t.Fatalf("unexpected claim state: %#v", claimed)
	}
	if _, err := s.Claim(ctx, q.ID, "hero-8"); err != ErrNotOpen {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}

func TestListPagination(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := s.Create(ctx, "owner-1", Draft{Title: "quest", Reward: int64(i)}); err != nil {
			t.Fatal(err)
		}
	}

	page1, last, err := s.List(ctx, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(page1) != 3 || last != 3 {
		t.Fatalf("unexpected first page: n=%d last=%d", len(page1), last)
	}
	page2, last, err := s.List(ctx, 3, last)
	if err != nil {
		t.Fatal(err)
	}
	if len(page2) != 2 || last != 5 {
		t.Fatalf("unexpected second page: n=%d last=%d", len(page2), last)
	}
}

func TestConcurrentCreates(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	N := 50
	for i := 0; i < N; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Create(ctx, "owner-1", Draft{Title: "bulk", Reward: 1})
		}()
	}
	wg.Wait()

	all, _, err := s.List(ctx, 1000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != N {
		t.Fatalf("expected %d quests, got %d", N, len(all))
	}
}
