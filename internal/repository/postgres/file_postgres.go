package postgres

import (
	"context"
	"database/sql"

	"fileshare/internal/model"
	"fileshare/internal/repository"
)

// FilePostgres is a PostgreSQL implementation of repository.FileRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type FilePostgres struct {
	db *sql.DB
}

// NewFilePostgres creates a new FilePostgres repository.
func NewFilePostgres(db *sql.DB) *FilePostgres {
	return &FilePostgres{db: db}
}

var _ repository.FileRepository = (*FilePostgres)(nil)

const fileColumns = `id, owner_id, filename, description, size, content_hash, content_type, category, storage_key, visibility, approval, created_at, updated_at`

func scanFile(row interface{ Scan(...any) error }) (*model.FileRecord, error) {
	var f model.FileRecord
	if err := row.Scan(
		&f.ID,
		&f.OwnerID,
		&f.Filename,
		&f.Description,
		&f.Size,
		&f.ContentHash,
		&f.ContentType,
		&f.Category,
		&f.StorageKey,
		&f.Visibility,
		&f.Approval,
		&f.CreatedAt,
		&f.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &f, nil
}

// Create inserts a new file row and returns the stored record.
func (r *FilePostgres) Create(ctx context.Context, f *model.FileRecord) (*model.FileRecord, error) {
	const q = `
		INSERT INTO files (id, owner_id, filename, description, size, content_hash, content_type, category, storage_key, visibility, approval, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + fileColumns
	row := r.db.QueryRowContext(ctx, q,
		f.ID,
		f.OwnerID,
		f.Filename,
		f.Description,
		f.Size,
		f.ContentHash,
		f.ContentType,
		f.Category,
		f.StorageKey,
		f.Visibility,
		f.Approval,
		f.CreatedAt,
		f.UpdatedAt,
	)
	return scanFile(row)
}

// FindByID fetches a single file by its ID.
func (r *FilePostgres) FindByID(ctx context.Context, id string) (*model.FileRecord, error) {
	const q = `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	return scanFile(r.db.QueryRowContext(ctx, q, id))
}

// ListByOwner returns files using LIMIT/OFFSET pagination and a total count.
func (r *FilePostgres) ListByOwner(ctx context.Context, ownerID string, pq repository.PageQuery) (*repository.PageResult[model.FileRecord], error) {
	const qCount = `SELECT COUNT(*) FROM files WHERE owner_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, ownerID).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `SELECT ` + fileColumns + ` FROM files WHERE owner_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, qList, ownerID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.FileRecord, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.FileRecord]{
		Items: items,
		Total: total,
	}, nil
}

// Delete removes a file row by ID.
func (r *FilePostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM files WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
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
