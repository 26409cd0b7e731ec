package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"fileshare/internal/model"
	"fileshare/internal/repository"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var requestCols = []string{"id", "requester_id", "target_id", "old_limit", "new_limit", "reason", "status", "reviewer_id", "reviewed_at", "review_comment", "created_at"}

func TestQuotaRequestPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	req := &model.QuotaModificationRequest{
		ID:          "req-1",
		RequesterID: "mod-1",
		TargetID:    "acc-1",
		OldLimit:    100,
		NewLimit:    200,
		Reason:      "project",
		Status:      model.StatusPending,
		CreatedAt:   now,
	}

	mock.ExpectQuery("INSERT INTO quota_modification_requests").
		WithArgs(req.ID, req.RequesterID, req.TargetID, req.OldLimit, req.NewLimit, req.Reason, req.Status, req.CreatedAt).
		WillReturnRows(sqlmock.NewRows(requestCols).
			AddRow("req-1", "mod-1", "acc-1", 100, 200, "project", "pending", nil, nil, nil, now))

	got, err := NewQuotaRequestPostgres(db).Create(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Nil(t, got.ReviewerID)
	assert.Nil(t, got.ReviewedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuotaRequestPostgres_FindByIDReviewed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM quota_modification_requests WHERE id = ?").
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows(requestCols).
			AddRow("req-1", "mod-1", "acc-1", 100, 200, "", "approved", "root", now, "ok", now))

	got, err := NewQuotaRequestPostgres(db).FindByID(context.Background(), "req-1")

	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got.Status)
	require.NotNil(t, got.ReviewerID)
	assert.Equal(t, "root", *got.ReviewerID)
	require.NotNil(t, got.ReviewComment)
	assert.Equal(t, "ok", *got.ReviewComment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuotaRequestPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM quota_modification_requests").
		WithArgs("pending").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT (.+) FROM quota_modification_requests (.+) LIMIT \\$2 OFFSET \\$3").
		WithArgs("pending", 20, 0).
		WillReturnRows(sqlmock.NewRows(requestCols).
			AddRow("req-1", "mod-1", "acc-1", 100, 200, "", "pending", nil, nil, nil, now))

	res, err := NewQuotaRequestPostgres(db).List(context.Background(), model.StatusPending, repository.PageQuery{Limit: 20})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Len(t, res.Items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuotaRequestPostgres_Resolve(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewQuotaRequestPostgres(db)
	ctx := context.Background()

	reviewer := "root"
	comment := "fine"
	at := time.Now().UTC()
	req := &model.QuotaModificationRequest{
		ID:            "req-1",
		Status:        model.StatusApproved,
		ReviewerID:    &reviewer,
		ReviewedAt:    &at,
		ReviewComment: &comment,
	}

	t.Run("pending row", func(t *testing.T) {
		mock.ExpectExec("UPDATE quota_modification_requests (.+) WHERE id = \\$1 AND status = 'pending'").
			WithArgs("req-1", "approved", "root", at, "fine").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Resolve(ctx, req))
	})

	t.Run("already resolved", func(t *testing.T) {
		mock.ExpectExec("UPDATE quota_modification_requests").
			WithArgs("req-1", "approved", "root", at, "fine").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Resolve(ctx, req), repository.ErrStale)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuotaRequestPostgres_Approve(t *testing.T) {
	ctx := context.Background()
	reviewer := "root"
	at := time.Now().UTC()
	req := &model.QuotaModificationRequest{
		ID:         "req-1",
		TargetID:   "acc-1",
		NewLimit:   500,
		Status:     model.StatusApproved,
		ReviewerID: &reviewer,
		ReviewedAt: &at,
	}
	entry := &model.QuotaChangeLogEntry{
		ID:        "log-1",
		ActorID:   "root",
		TargetID:  "acc-1",
		Action:    model.ActionRequestApproved,
		OldLimit:  100,
		NewLimit:  500,
		CreatedAt: at,
	}

	expectResolve := func(mock sqlmock.Sqlmock, rows int64) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE quota_modification_requests (.+) WHERE id = \\$1 AND status = 'pending'").
			WithArgs("req-1", "approved", "root", at, nil).
			WillReturnResult(sqlmock.NewResult(0, rows))
	}
	expectLimit := func(mock sqlmock.Sqlmock, rows int64) {
		mock.ExpectExec("UPDATE accounts SET storage_limit = \\$2(.+)WHERE id = \\$1 AND storage_used <= \\$2").
			WithArgs("acc-1", int64(500)).
			WillReturnResult(sqlmock.NewResult(0, rows))
	}

	t.Run("commits all three writes", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		expectResolve(mock, 1)
		expectLimit(mock, 1)
		mock.ExpectExec("INSERT INTO quota_change_log").
			WithArgs("log-1", "root", "acc-1", entry.Action, int64(100), int64(500), "", at).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, NewQuotaRequestPostgres(db).Approve(ctx, req, entry))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already resolved", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		expectResolve(mock, 0)
		mock.ExpectRollback()

		assert.ErrorIs(t, NewQuotaRequestPostgres(db).Approve(ctx, req, entry), repository.ErrStale)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("below used", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		expectResolve(mock, 1)
		expectLimit(mock, 0)
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("acc-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		assert.ErrorIs(t, NewQuotaRequestPostgres(db).Approve(ctx, req, entry), repository.ErrBelowUsed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing target", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		expectResolve(mock, 1)
		expectLimit(mock, 0)
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("acc-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectRollback()

		assert.ErrorIs(t, NewQuotaRequestPostgres(db).Approve(ctx, req, entry), sql.ErrNoRows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("log insert failure rolls back the limit", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		expectResolve(mock, 1)
		expectLimit(mock, 1)
		mock.ExpectExec("INSERT INTO quota_change_log").
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		assert.EqualError(t, NewQuotaRequestPostgres(db).Approve(ctx, req, entry), "connection reset")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestQuotaLogPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewQuotaLogPostgres(db)
	ctx := context.Background()
	now := time.Now().UTC()

	e := &model.QuotaChangeLogEntry{
		ID:        "log-1",
		ActorID:   "root",
		TargetID:  "acc-1",
		Action:    model.ActionRequestApproved,
		OldLimit:  100,
		NewLimit:  200,
		CreatedAt: now,
	}
	mock.ExpectExec("INSERT INTO quota_change_log").
		WithArgs(e.ID, e.ActorID, e.TargetID, e.Action, e.OldLimit, e.NewLimit, e.Reason, e.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Append(ctx, e))

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM quota_change_log").
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT (.+) FROM quota_change_log").
		WithArgs("acc-1", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "actor_id", "target_id", "action", "old_limit", "new_limit", "reason", "created_at"}).
			AddRow("log-1", "root", "acc-1", "request_approved", 100, 200, "", now))

	res, err := repo.List(ctx, "acc-1", repository.PageQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, model.ActionRequestApproved, res.Items[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}
