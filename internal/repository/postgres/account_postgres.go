package postgres

import (
	"context"
	"database/sql"
	"time"

	"fileshare/internal/model"
	"fileshare/internal/repository"
)

// AccountPostgres is a PostgreSQL implementation of repository.AccountRepository.
// Every mutation is a single-row statement so concurrent writers never lose updates.
type AccountPostgres struct {
	db *sql.DB
}

// NewAccountPostgres creates a new AccountPostgres repository.
func NewAccountPostgres(db *sql.DB) *AccountPostgres {
	return &AccountPostgres{db: db}
}

var _ repository.AccountRepository = (*AccountPostgres)(nil)

const accountColumns = `id, email, storage_used, storage_limit, is_admin, is_moderator, capabilities, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	if err := row.Scan(
		&a.ID,
		&a.Email,
		&a.StorageUsed,
		&a.StorageLimit,
		&a.IsAdmin,
		&a.IsModerator,
		&a.Capabilities,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

// FindByID fetches a single account by its ID.
func (r *AccountPostgres) FindByID(ctx context.Context, id string) (*model.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRowContext(ctx, q, id))
}

// Ensure inserts the account on first sight and returns the stored row either way.
func (r *AccountPostgres) Ensure(ctx context.Context, id string, defaultLimit int64) (*model.Account, error) {
	const q = `
		INSERT INTO accounts (id, storage_used, storage_limit)
		VALUES ($1, 0, $2)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, q, id, defaultLimit); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// FindProtected fetches the account carrying the protected capability bit.
func (r *AccountPostgres) FindProtected(ctx context.Context) (*model.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE capabilities & $1 <> 0 LIMIT 1`
	return scanAccount(r.db.QueryRowContext(ctx, q, int(model.CapProtected)))
}

// AddUsage moves storage_used by delta without letting it drop below zero.
func (r *AccountPostgres) AddUsage(ctx context.Context, id string, delta int64) error {
	const q = `
		UPDATE accounts
		SET storage_used = GREATEST(0, storage_used + $2), updated_at = now()
		WHERE id = $1
	`
	return r.execOne(ctx, q, id, delta)
}

// ReserveUsage is the check-and-reserve of a quota in one statement; the affected row count
// is the decision.
func (r *AccountPostgres) ReserveUsage(ctx context.Context, id string, delta int64) (bool, error) {
	const q = `
		UPDATE accounts
		SET storage_used = storage_used + $2, updated_at = now()
		WHERE id = $1 AND storage_used + $2 <= storage_limit
	`
	return r.execConditional(ctx, q, id, delta)
}

// SetLimit changes storage_limit unless it would fall below storage_used.
func (r *AccountPostgres) SetLimit(ctx context.Context, id string, limit int64) (bool, error) {
	const q = `
		UPDATE accounts
		SET storage_limit = $2, updated_at = now()
		WHERE id = $1 AND storage_used <= $2
	`
	return r.execConditional(ctx, q, id, limit)
}

// SetRoles writes both role flags.
func (r *AccountPostgres) SetRoles(ctx context.Context, id string, isAdmin, isModerator bool) error {
	const q = `
		UPDATE accounts
		SET is_admin = $2, is_moderator = $3, updated_at = now()
		WHERE id = $1
	`
	return r.execOne(ctx, q, id, isAdmin, isModerator)
}

// Designate ORs caps into the capability bits and grants both roles.
// The partial unique index on the protected bit rejects a second protected account.
func (r *AccountPostgres) Designate(ctx context.Context, id string, caps model.Capability) error {
	const q = `
		UPDATE accounts
		SET capabilities = capabilities | $2, is_admin = TRUE, is_moderator = TRUE, updated_at = now()
		WHERE id = $1
	`
	return r.execOne(ctx, q, id, int(caps))
}

// RecalculateUsage rewrites storage_used from the files table where it drifted. An upload
// in flight has either reserved bytes with no file row yet or written the row without
// committing usage; the grace window keeps both out of the correction.
func (r *AccountPostgres) RecalculateUsage(ctx context.Context, grace time.Duration) (int64, error) {
	const q = `
		WITH sizes AS (
			SELECT a.id, COALESCE(SUM(f.size), 0) AS total
			FROM accounts a
			LEFT JOIN files f ON f.owner_id = a.id
			GROUP BY a.id
		)
		UPDATE accounts a
		SET storage_used = sizes.total, updated_at = now()
		FROM sizes
		WHERE a.id = sizes.id
			AND a.storage_used <> sizes.total
			AND a.updated_at < now() - make_interval(secs => $1)
			AND NOT EXISTS (
				SELECT 1 FROM files f
				WHERE f.owner_id = a.id AND f.created_at >= now() - make_interval(secs => $1)
			)
	`
	res, err := r.db.ExecContext(ctx, q, grace.Seconds())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// execOne runs an update that must touch exactly one row.
func (r *AccountPostgres) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// execConditional runs a guarded update. When nothing changed it tells a missing row
// (sql.ErrNoRows) apart from an unmet condition (false, nil).
func (r *AccountPostgres) execConditional(ctx context.Context, q, id string, arg int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, q, id, arg)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, sql.ErrNoRows
	}
	return false, nil
}
