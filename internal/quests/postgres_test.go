package quests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var questRowColumns = []string{
	"id", "owner_id", "title", "description", "reward", "status",
	"claimed_by", "sequence", "created_at", "updated_at",
}

func questRow(id, owner, status string, seq uint64) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(questRowColumns).AddRow(
		id, owner, "Slay the dragon", "", int64(100), status, nil, int64(seq), now, now,
	)
}

func TestPGStoreCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("insert into quests").
		WillReturnRows(questRow("q-1", "u-1", "open", 1))

	store := NewPGStore(db)
	q, err := store.Create(context.Background(), "u-1", Draft{Title: "Slay the dragon", Reward: 100})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if q.ID != "q-1" || q.Status != StatusOpen || q.Sequence != 1 {
		t.Fatalf("unexpected quest: %#v", q)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreClaimConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	// guarded update matches no row; the follow-up read finds the quest claimed
	mock.ExpectQuery("update quests set status = 'claimed'").
		WithArgs("q-1", "u-2").
		WillReturnRows(sqlmock.NewRows(questRowColumns))
	mock.ExpectQuery("from quests where id").
		WithArgs("q-1").
		WillReturnRows(questRow("q-1", "u-1", "claimed", 1))

	store := NewPGStore(db)
	if _, err := store.Claim(context.Background(), "q-1", "u-2"); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}

func TestPGStoreDeleteNotOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("delete from quests").
		WithArgs("q-1", "u-2", false).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("from quests where id").
		WithArgs("q-1").
		WillReturnRows(questRow("q-1", "u-1", "open", 1))

	store := NewPGStore(db)
	if err := store.Delete(context.Background(), "q-1", "u-2", false); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestPGStoreDeleteMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("delete from quests").
		WithArgs("ghost", "u-1", false).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("from quests where id").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(questRowColumns))

	store := NewPGStore(db)
	if err := store.Delete(context.Background(), "ghost", "u-1", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
