package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"fileshare/internal/model"
	"fileshare/internal/repository"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

var fileCols = []string{"id", "owner_id", "filename", "description", "size", "content_hash", "content_type", "category", "storage_key", "visibility", "approval", "created_at", "updated_at"}

func fileRow(rows *sqlmock.Rows, f *model.FileRecord) *sqlmock.Rows {
	return rows.AddRow(f.ID, f.OwnerID, f.Filename, f.Description, f.Size, f.ContentHash, f.ContentType,
		f.Category, f.StorageKey, string(f.Visibility), string(f.Approval), f.CreatedAt, f.UpdatedAt)
}

func TestFilePostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	f := &model.FileRecord{
		ID:          "file-1",
		OwnerID:     "acc-1",
		Filename:    "a.png",
		Size:        10,
		ContentHash: "abc",
		ContentType: "image/png",
		Category:    "image",
		StorageKey:  "uploads/acc-1/1_a.png",
		Visibility:  model.VisibilityPrivate,
		Approval:    model.ApprovalApproved,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mock.ExpectQuery("INSERT INTO files").
		WithArgs(f.ID, f.OwnerID, f.Filename, f.Description, f.Size, f.ContentHash, f.ContentType,
			f.Category, f.StorageKey, f.Visibility, f.Approval, f.CreatedAt, f.UpdatedAt).
		WillReturnRows(fileRow(sqlmock.NewRows(fileCols), f))

	result, err := repo.Create(ctx, f)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, f.ID, result.ID)
	assert.Equal(t, model.VisibilityPrivate, result.Visibility)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilePostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		now := time.Now()
		f := &model.FileRecord{ID: "file-1", OwnerID: "acc-1", Filename: "a.txt", Size: 3,
			Visibility: model.VisibilityPublic, Approval: model.ApprovalPending, CreatedAt: now, UpdatedAt: now}
		mock.ExpectQuery("SELECT (.+) FROM files WHERE id = ?").
			WithArgs("file-1").
			WillReturnRows(fileRow(sqlmock.NewRows(fileCols), f))

		got, err := repo.FindByID(ctx, "file-1")

		assert.NoError(t, err)
		assert.Equal(t, model.ApprovalPending, got.Approval)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM files WHERE id = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		got, err := repo.FindByID(ctx, "missing")

		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, got)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilePostgres_ListByOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM files WHERE owner_id = \\$1").
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	rows := sqlmock.NewRows(fileCols)
	fileRow(rows, &model.FileRecord{ID: "f2", OwnerID: "acc-1", Visibility: model.VisibilityPublic, Approval: model.ApprovalApproved, CreatedAt: now, UpdatedAt: now})
	fileRow(rows, &model.FileRecord{ID: "f1", OwnerID: "acc-1", Visibility: model.VisibilityPublic, Approval: model.ApprovalApproved, CreatedAt: now, UpdatedAt: now})
	mock.ExpectQuery("SELECT (.+) FROM files WHERE owner_id = \\$1 ORDER BY created_at DESC").
		WithArgs("acc-1", 10, 0).
		WillReturnRows(rows)

	result, err := repo.ListByOwner(ctx, "acc-1", repository.PageQuery{Limit: 10, Offset: 0})

	assert.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, "f2", result.Items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilePostgres_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM files WHERE id = ?").
			WithArgs("file-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Delete(ctx, "file-1"))
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM files WHERE id = ?").
			WithArgs("missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Delete(ctx, "missing"), sql.ErrNoRows)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
