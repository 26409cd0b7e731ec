package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dustin/go-humanize"

	"fileshare/internal/apperror"
	"fileshare/internal/model"
	"fileshare/internal/repository"
)

// Ledger is the quota ledger: the writer of storage_used, and of storage_limit outside an
// approved request (which sets it in the same transaction as the request and its log entry).
//
// Headroom followed by CommitUsage is check-then-act; two concurrent uploads may both pass
// the check and jointly overshoot the limit. Reserve closes that gap with one conditional
// update and is used when atomic reservation is enabled.
type Ledger struct {
	accounts repository.AccountRepository
}

// NewLedger constructs a Ledger.
func NewLedger(accounts repository.AccountRepository) *Ledger {
	return &Ledger{accounts: accounts}
}

// Account loads the storage fields of accountID.
func (l *Ledger) Account(ctx context.Context, accountID string) (*model.Account, error) {
	a, err := l.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, lookupErr(err, "account", accountID)
	}
	return a, nil
}

// Headroom returns nil when accountID can take required more bytes, QuotaExceeded otherwise.
func (l *Ledger) Headroom(ctx context.Context, accountID string, required int64) error {
	a, err := l.accounts.FindByID(ctx, accountID)
	if err != nil {
		return lookupErr(err, "account", accountID)
	}
	if a.StorageUsed+required > a.StorageLimit {
		return apperror.New(apperror.KindQuotaExceeded, "",
			"storage quota exceeded: %s needed, %s available",
			humanize.IBytes(uint64(required)), humanize.IBytes(uint64(a.Headroom())))
	}
	return nil
}

// Reserve adds bytes to storage_used only if the result stays within the limit.
func (l *Ledger) Reserve(ctx context.Context, accountID string, bytes int64) error {
	ok, err := l.accounts.ReserveUsage(ctx, accountID, bytes)
	if err != nil {
		return lookupErr(err, "account", accountID)
	}
	if !ok {
		return apperror.New(apperror.KindQuotaExceeded, "",
			"storage quota exceeded: %s does not fit", humanize.IBytes(uint64(bytes)))
	}
	return nil
}

// CommitUsage moves storage_used by delta. Negative deltas never push it below zero.
func (l *Ledger) CommitUsage(ctx context.Context, accountID string, delta int64) error {
	if err := l.accounts.AddUsage(ctx, accountID, delta); err != nil {
		return lookupErr(err, "account", accountID)
	}
	return nil
}

// SetLimit changes storage_limit. It fails with BelowUsed when newLimit < storage_used.
func (l *Ledger) SetLimit(ctx context.Context, accountID string, newLimit int64) error {
	if newLimit < 0 {
		return apperror.New(apperror.KindValidation, apperror.ReasonInvalidInput, "limit must not be negative")
	}
	ok, err := l.accounts.SetLimit(ctx, accountID, newLimit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lookupErr(err, "account", accountID)
		}
		return apperror.Wrap(err, apperror.KindPersistence, "", "failed to update storage limit")
	}
	if !ok {
		return apperror.New(apperror.KindQuotaExceeded, apperror.ReasonBelowUsed,
			"new limit %s is below current usage", humanize.IBytes(uint64(newLimit)))
	}
	return nil
}

// Reconcile recomputes storage_used from the owned file sizes for every account that drifted
// and has been quiet for grace, and returns how many accounts were corrected.
func (l *Ledger) Reconcile(ctx context.Context, grace time.Duration) (int64, error) {
	n, err := l.accounts.RecalculateUsage(ctx, grace)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.KindPersistence, "", "failed to reconcile storage usage")
	}
	return n, nil
}
