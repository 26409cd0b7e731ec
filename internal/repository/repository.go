package repository

import (
	"context"
	"errors"
	"time"

	"fileshare/internal/model"
)

// Package repository contains data access layer abstractions.
// Implementations can live in subpackages (e.g., postgres, mongo) inside this directory.
// Lookups of unknown rows return sql.ErrNoRows; no business rules live here.

var (
	// ErrStale is returned by conditional updates whose precondition no longer holds.
	ErrStale = errors.New("row no longer matches the expected state")
	// ErrBelowUsed is returned when a new storage_limit would be below storage_used.
	ErrBelowUsed = errors.New("limit below current usage")
)

// AccountRepository persists the storage fields and role flags of accounts.
type AccountRepository interface {
	// FindByID returns an account by its ID.
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// Ensure creates the account with the given limit if it does not exist yet and returns it.
	// Identities come from the external auth service, so the first request provisions the row.
	Ensure(ctx context.Context, id string, defaultLimit int64) (*model.Account, error)

	// FindProtected returns the account holding the protected capability.
	FindProtected(ctx context.Context) (*model.Account, error)

	// AddUsage adds delta (possibly negative) to storage_used, clamping at zero.
	AddUsage(ctx context.Context, id string, delta int64) error

	// ReserveUsage adds delta to storage_used only if the result stays within storage_limit.
	// It reports whether the row was updated.
	ReserveUsage(ctx context.Context, id string, delta int64) (bool, error)

	// SetLimit sets storage_limit only if it is not below storage_used.
	// It reports whether the row was updated.
	SetLimit(ctx context.Context, id string, limit int64) (bool, error)

	// SetRoles writes the admin and moderator flags.
	SetRoles(ctx context.Context, id string, isAdmin, isModerator bool) error

	// Designate grants capabilities and the admin and moderator roles to the account.
	Designate(ctx context.Context, id string, caps model.Capability) error

	// RecalculateUsage resets storage_used to the sum of owned file sizes for every drifted
	// account and returns how many accounts were corrected. Accounts updated, or owning a
	// file created, within grace are left for a later run.
	RecalculateUsage(ctx context.Context, grace time.Duration) (int64, error)
}

// FileRepository persists file metadata.
type FileRepository interface {
	// Create inserts a new file record and returns the stored row.
	Create(ctx context.Context, f *model.FileRecord) (*model.FileRecord, error)

	// FindByID returns a file record by its ID.
	FindByID(ctx context.Context, id string) (*model.FileRecord, error)

	// ListByOwner returns a page of an owner's files, newest first.
	ListByOwner(ctx context.Context, ownerID string, pq PageQuery) (*PageResult[model.FileRecord], error)

	// Delete removes a file record. It returns sql.ErrNoRows if nothing was deleted.
	Delete(ctx context.Context, id string) error
}

// QuotaRequestRepository persists quota modification requests.
type QuotaRequestRepository interface {
	Create(ctx context.Context, r *model.QuotaModificationRequest) (*model.QuotaModificationRequest, error)
	FindByID(ctx context.Context, id string) (*model.QuotaModificationRequest, error)

	// List returns requests filtered by status ("" for all), newest first.
	List(ctx context.Context, status model.RequestStatus, pq PageQuery) (*PageResult[model.QuotaModificationRequest], error)

	// Resolve writes the review fields of a request that is still pending.
	// It returns ErrStale when the request already left the pending state.
	Resolve(ctx context.Context, r *model.QuotaModificationRequest) error

	// Approve resolves a pending request, sets the target's storage_limit to r.NewLimit and
	// appends entry, all in one transaction. Nothing is written when it fails: ErrStale if
	// the request is no longer pending, sql.ErrNoRows if the target is gone, ErrBelowUsed
	// if the limit no longer covers the target's usage.
	Approve(ctx context.Context, r *model.QuotaModificationRequest, entry *model.QuotaChangeLogEntry) error
}

// QuotaLogRepository is the append-only quota change log. It offers no update or delete.
type QuotaLogRepository interface {
	Append(ctx context.Context, e *model.QuotaChangeLogEntry) error

	// List returns entries for targetID ("" for all), newest first.
	List(ctx context.Context, targetID string, pq PageQuery) (*PageResult[model.QuotaChangeLogEntry], error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
