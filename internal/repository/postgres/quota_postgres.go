package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"fileshare/internal/model"
	"fileshare/internal/repository"
)

// QuotaRequestPostgres stores quota modification requests.
type QuotaRequestPostgres struct {
	db *sql.DB
}

// NewQuotaRequestPostgres creates a new QuotaRequestPostgres repository.
func NewQuotaRequestPostgres(db *sql.DB) *QuotaRequestPostgres {
	return &QuotaRequestPostgres{db: db}
}

var _ repository.QuotaRequestRepository = (*QuotaRequestPostgres)(nil)

const (
	resolveQuery = `
		UPDATE quota_modification_requests
		SET status = $2, reviewer_id = $3, reviewed_at = $4, review_comment = $5
		WHERE id = $1 AND status = 'pending'
	`
	appendQuery = `
		INSERT INTO quota_change_log (id, actor_id, target_id, action, old_limit, new_limit, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
)

const requestColumns = `id, requester_id, target_id, old_limit, new_limit, reason, status, reviewer_id, reviewed_at, review_comment, created_at`

func scanRequest(row interface{ Scan(...any) error }) (*model.QuotaModificationRequest, error) {
	var (
		req        model.QuotaModificationRequest
		reviewerID sql.NullString
		reviewedAt sql.NullTime
		comment    sql.NullString
	)
	if err := row.Scan(
		&req.ID,
		&req.RequesterID,
		&req.TargetID,
		&req.OldLimit,
		&req.NewLimit,
		&req.Reason,
		&req.Status,
		&reviewerID,
		&reviewedAt,
		&comment,
		&req.CreatedAt,
	); err != nil {
		return nil, err
	}
	if reviewerID.Valid {
		req.ReviewerID = &reviewerID.String
	}
	if reviewedAt.Valid {
		req.ReviewedAt = &reviewedAt.Time
	}
	if comment.Valid {
		req.ReviewComment = &comment.String
	}
	return &req, nil
}

// Create inserts a pending request.
func (r *QuotaRequestPostgres) Create(ctx context.Context, req *model.QuotaModificationRequest) (*model.QuotaModificationRequest, error) {
	const q = `
		INSERT INTO quota_modification_requests (id, requester_id, target_id, old_limit, new_limit, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + requestColumns
	return scanRequest(r.db.QueryRowContext(ctx, q,
		req.ID,
		req.RequesterID,
		req.TargetID,
		req.OldLimit,
		req.NewLimit,
		req.Reason,
		req.Status,
		req.CreatedAt,
	))
}

// FindByID fetches a single request.
func (r *QuotaRequestPostgres) FindByID(ctx context.Context, id string) (*model.QuotaModificationRequest, error) {
	const q = `SELECT ` + requestColumns + ` FROM quota_modification_requests WHERE id = $1`
	return scanRequest(r.db.QueryRowContext(ctx, q, id))
}

// List returns requests newest first, optionally filtered by status.
func (r *QuotaRequestPostgres) List(ctx context.Context, status model.RequestStatus, pq repository.PageQuery) (*repository.PageResult[model.QuotaModificationRequest], error) {
	const qCount = `SELECT COUNT(*) FROM quota_modification_requests WHERE ($1 = '' OR status = $1)`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, string(status)).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + requestColumns + `
		FROM quota_modification_requests
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, qList, string(status), pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.QuotaModificationRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.QuotaModificationRequest]{Items: items, Total: total}, nil
}

// Resolve moves a pending request to its terminal status. The status guard in the WHERE
// clause makes a second resolution a no-op reported as ErrStale.
func (r *QuotaRequestPostgres) Resolve(ctx context.Context, req *model.QuotaModificationRequest) error {
	res, err := r.db.ExecContext(ctx, resolveQuery, req.ID, req.Status, req.ReviewerID, req.ReviewedAt, req.ReviewComment)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("resolve request %s: %w", req.ID, repository.ErrStale)
	}
	return nil
}

// Approve runs the request resolution, the limit change and the log append in one
// transaction. The request update goes first so a concurrent reviewer blocks on its row.
func (r *QuotaRequestPostgres) Approve(ctx context.Context, req *model.QuotaModificationRequest, e *model.QuotaChangeLogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, resolveQuery, req.ID, req.Status, req.ReviewerID, req.ReviewedAt, req.ReviewComment)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("approve request %s: %w", req.ID, repository.ErrStale)
	}

	const qLimit = `
		UPDATE accounts
		SET storage_limit = $2, updated_at = now()
		WHERE id = $1 AND storage_used <= $2
	`
	res, err = tx.ExecContext(ctx, qLimit, req.TargetID, req.NewLimit)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, req.TargetID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return sql.ErrNoRows
		}
		return fmt.Errorf("approve request %s: %w", req.ID, repository.ErrBelowUsed)
	}

	if _, err := tx.ExecContext(ctx, appendQuery, e.ID, e.ActorID, e.TargetID, e.Action, e.OldLimit, e.NewLimit, e.Reason, e.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

// QuotaLogPostgres is the append-only quota change log.
type QuotaLogPostgres struct {
	db *sql.DB
}

// NewQuotaLogPostgres creates a new QuotaLogPostgres repository.
func NewQuotaLogPostgres(db *sql.DB) *QuotaLogPostgres {
	return &QuotaLogPostgres{db: db}
}

var _ repository.QuotaLogRepository = (*QuotaLogPostgres)(nil)

// Append inserts one entry.
func (r *QuotaLogPostgres) Append(ctx context.Context, e *model.QuotaChangeLogEntry) error {
	_, err := r.db.ExecContext(ctx, appendQuery, e.ID, e.ActorID, e.TargetID, e.Action, e.OldLimit, e.NewLimit, e.Reason, e.CreatedAt)
	return err
}

// List returns entries newest first, optionally for one target.
func (r *QuotaLogPostgres) List(ctx context.Context, targetID string, pq repository.PageQuery) (*repository.PageResult[model.QuotaChangeLogEntry], error) {
	const qCount = `SELECT COUNT(*) FROM quota_change_log WHERE ($1 = '' OR target_id::text = $1)`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, targetID).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT id, actor_id, target_id, action, old_limit, new_limit, reason, created_at
		FROM quota_change_log
		WHERE ($1 = '' OR target_id::text = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, qList, targetID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.QuotaChangeLogEntry, 0)
	for rows.Next() {
		var e model.QuotaChangeLogEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.TargetID, &e.Action, &e.OldLimit, &e.NewLimit, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.QuotaChangeLogEntry]{Items: items, Total: total}, nil
}
