package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"questboard.org/internal/ids"
)

// PGStore implements PrincipalStore on PostgreSQL through database/sql with
// the pgx stdlib driver. The lockout counter mutation is a single UPDATE so
// concurrent failed attempts never under-count, across goroutines and across
// replicas alike.
type PGStore struct {
	db *sql.DB
}

var _ PrincipalStore = (*PGStore)(nil)

// NewPGStore wraps an open database handle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const principalColumns = `id, username, email, password_hash, status, roles, enabled,
	account_locked, failed_login_count, last_login_at, deleted_at, created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, p *Principal) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	roles, err := json.Marshal(NormalizeRoles(p.Roles))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into users(id, username, email, password_hash, status, roles, enabled)
		 values($1, $2, lower($3), $4, $5, $6, $7)`,
		p.ID, p.Username, p.Email, p.PasswordHash, string(p.Status), roles, p.Enabled,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from users where id = $1`, id)
	return scanPrincipal(row)
}

func (s *PGStore) FindByUsername(ctx context.Context, username string) (*Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from users where username = $1`, username)
	return scanPrincipal(row)
}

func (s *PGStore) FindByLogin(ctx context.Context, usernameOrEmail string) (*Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from users where username = $1 or email = lower($1)`,
		usernameOrEmail)
	return scanPrincipal(row)
}

// RecordLoginFailure increments the counter and flips the account to
// SUSPENDED in the same statement once the threshold is reached. Terminal
// states keep their status; the counter still advances.
func (s *PGStore) RecordLoginFailure(ctx context.Context, id string, threshold int) (*Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`update users set
			failed_login_count = failed_login_count + 1,
			status = case
				when failed_login_count + 1 >= $2 and status not in ('banned', 'deleted')
				then 'suspended' else status end,
			account_locked = case
				when failed_login_count + 1 >= $2 and status not in ('banned', 'deleted')
				then true else account_locked end,
			updated_at = now()
		 where id = $1
		 returning `+principalColumns, id, threshold)
	return scanPrincipal(row)
}

func (s *PGStore) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update users set failed_login_count = 0, last_login_at = $2, updated_at = now()
		 where id = $1`, id, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) Unlock(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set status = 'active', account_locked = false,
			failed_login_count = 0, updated_at = now()
		 where id = $1 and (status = 'suspended' or account_locked)
			and status not in ('banned', 'deleted') and deleted_at is null`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (s *PGStore) Ban(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set status = 'banned', updated_at = now()
		 where id = $1 and status <> 'deleted' and deleted_at is null`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (s *PGStore) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update users set status = 'deleted', deleted_at = $2, updated_at = now()
		 where id = $1 and deleted_at is null`, id, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row rowScanner) (*Principal, error) {
	var (
		p      Principal
		status string
		roles  []byte
	)
	err := row.Scan(
		&p.ID, &p.Username, &p.Email, &p.PasswordHash, &status, &roles, &p.Enabled,
		&p.AccountLocked, &p.FailedLoginCount, &p.LastLoginAt, &p.DeletedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Status = Status(status)
	if len(roles) > 0 {
		_ = json.Unmarshal(roles, &p.Roles)
	}
	return &p, nil
}

func requireRow(res sql.Result) error {
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
