package quests

import (
	"context"
	"database/sql"
	"errors"
)

// PGStore implements Service on PostgreSQL through database/sql. Sequence
// numbers come from the table's bigserial column, so pagination cursors stay
// monotonic across instances.
type PGStore struct {
	db *sql.DB
}

var _ Service = (*PGStore)(nil)

// NewPGStore wraps an open database handle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const questColumns = `id, owner_id, title, description, reward, status, claimed_by, sequence, created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, ownerID string, in Draft) (Quest, error) {
	if ownerID == "" {
		return Quest{}, ErrNotOwner
	}
	if err := in.validate(); err != nil {
		return Quest{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`insert into quests(id, owner_id, title, description, reward, status)
		 values($1, $2, $3, $4, $5, 'open')
		 returning `+questColumns,
		newID(), ownerID, in.Title, in.Description, in.Reward)
	return scanQuest(row)
}

func (s *PGStore) Get(ctx context.Context, id string) (Quest, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+questColumns+` from quests where id = $1`, id)
	return scanQuest(row)
}

func (s *PGStore) List(ctx context.Context, limit int, afterSeq uint64) ([]Quest, uint64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`select `+questColumns+` from quests where sequence > $1 order by sequence asc limit $2`,
		afterSeq, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		res  []Quest
		last uint64
	)
	for rows.Next() {
		q, err := scanQuest(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, q)
		last = q.Sequence
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return res, last, nil
}

func (s *PGStore) Update(ctx context.Context, id, actorID string, override bool, in Draft) (Quest, error) {
	if err := in.validate(); err != nil {
		return Quest{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`update quests set title = $2, description = $3, reward = $4, updated_at = now()
		 where id = $1 and (owner_id = $5 or $6)
		 returning `+questColumns,
		id, in.Title, in.Description, in.Reward, actorID, override)
	q, err := scanQuest(row)
	if errors.Is(err, ErrNotFound) {
		return Quest{}, s.denialReason(ctx, id, ErrNotOwner)
	}
	return q, err
}

func (s *PGStore) Delete(ctx context.Context, id, actorID string, override bool) error {
	res, err := s.db.ExecContext(ctx,
		`delete from quests where id = $1 and (owner_id = $2 or $3)`,
		id, actorID, override)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.denialReason(ctx, id, ErrNotOwner)
	}
	return nil
}

func (s *PGStore) Claim(ctx context.Context, id, actorID string) (Quest, error) {
	if actorID == "" {
		return Quest{}, ErrNotOwner
	}
	row := s.db.QueryRowContext(ctx,
		`update quests set status = 'claimed', claimed_by = $2, updated_at = now()
		 where id = $1 and status = 'open'
		 returning `+questColumns,
		id, actorID)
	q, err := scanQuest(row)
	if errors.Is(err, ErrNotFound) {
		return Quest{}, s.denialReason(ctx, id, ErrNotOpen)
	}
	return q, err
}

// denialReason tells a guarded write that matched no rows apart: the quest is
// either absent or present but failed the guard.
func (s *PGStore) denialReason(ctx context.Context, id string, present error) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return present
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuest(row rowScanner) (Quest, error) {
	var (
		q         Quest
		status    string
		claimedBy sql.NullString
	)
	err := row.Scan(
		&q.ID, &q.OwnerID, &q.Title, &q.Description, &q.Reward, &status,
		&claimedBy, &q.Sequence, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quest{}, ErrNotFound
		}
		return Quest{}, err
	}
	q.Status = QuestStatus(status)
	q.ClaimedBy = claimedBy.String
	return q, nil
}
