package model

import "time"

// Capability is a bit set of special designations an account can hold.
// Designations are data on the account, never identity comparisons in code.
type Capability int

const (
	// CapProtected marks the single account whose roles and quota nobody else may alter.
	CapProtected Capability = 1 << iota
	// CapQuotaReviewer allows reviewing quota modification requests.
	CapQuotaReviewer
)

// Account is the storage-relevant projection of a user profile.
type Account struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	StorageUsed  int64      `json:"storage_used"`
	StorageLimit int64      `json:"storage_limit"`
	IsAdmin      bool       `json:"is_admin"`
	IsModerator  bool       `json:"is_moderator"`
	Capabilities Capability `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Has reports whether every bit of c is set on the account.
func (a *Account) Has(c Capability) bool {
	return a.Capabilities&c == c
}

// IsProtected reports whether this is the protected account.
func (a *Account) IsProtected() bool { return a.Has(CapProtected) }

// CanReviewQuota reports whether the account may approve or reject quota requests.
func (a *Account) CanReviewQuota() bool { return a.Has(CapQuotaReviewer) }

// Headroom is the number of bytes still available under the limit. Never negative.
func (a *Account) Headroom() int64 {
	if h := a.StorageLimit - a.StorageUsed; h > 0 {
		return h
	}
	return 0
}

// QuotaSummary is what an account sees about its own storage.
type QuotaSummary struct {
	AccountID    string  `json:"account_id"`
	StorageUsed  int64   `json:"storage_used"`
	StorageLimit int64   `json:"storage_limit"`
	Headroom     int64   `json:"headroom"`
	UsagePercent float64 `json:"usage_percent"`
}

// Summary builds the QuotaSummary for the account.
func (a *Account) Summary() QuotaSummary {
	var pct float64
	if a.StorageLimit > 0 {
		pct = float64(a.StorageUsed) / float64(a.StorageLimit) * 100
	}
	return QuotaSummary{
		AccountID:    a.ID,
		StorageUsed:  a.StorageUsed,
		StorageLimit: a.StorageLimit,
		Headroom:     a.Headroom(),
		UsagePercent: pct,
	}
}
