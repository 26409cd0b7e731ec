// Package ratelimit implements per-client sliding window admission control for uploads.
//
// A window opens on the first admitted upload of a client and lasts Window. While it is
// open the client may upload at most MaxUploads files totalling at most MaxBytes bytes.
// Once it has elapsed the next call starts a fresh window.
package ratelimit

import (
	"context"
	"time"
)

// Reason explains a denial.
type Reason string

const (
	TooManyUploads Reason = "TooManyUploads"
	TooManyBytes   Reason = "TooManyBytes"
)

// Limits are the window parameters.
type Limits struct {
	Window     time.Duration
	MaxUploads int
	MaxBytes   int64
}

// DefaultLimits are 50 uploads or 10 GiB per minute.
var DefaultLimits = Limits{
	Window:     time.Minute,
	MaxUploads: 50,
	MaxBytes:   10 << 30,
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	Reason     Reason
	RetryAfter time.Duration
}

// Store keeps window state and applies the admit/deny rule atomically per key.
// The in-memory store serves a single process; the Redis store shares state across instances.
type Store interface {
	Admit(ctx context.Context, key string, bytes int64, now time.Time, l Limits) (Decision, error)
	// Prune drops windows that elapsed before now and returns how many were removed.
	Prune(ctx context.Context, now time.Time, l Limits) (int, error)
}

// Limiter applies Limits through a Store.
type Limiter struct {
	store  Store
	limits Limits
	now    func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter. Zero fields in limits fall back to DefaultLimits.
func New(store Store, limits Limits, opts ...Option) *Limiter {
	if limits.Window <= 0 {
		limits.Window = DefaultLimits.Window
	}
	if limits.MaxUploads <= 0 {
		limits.MaxUploads = DefaultLimits.MaxUploads
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultLimits.MaxBytes
	}
	l := &Limiter{store: store, limits: limits, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limits returns the effective limits.
func (l *Limiter) Limits() Limits { return l.limits }

// Admit records an upload of bytes for key if the window allows it.
func (l *Limiter) Admit(ctx context.Context, key string, bytes int64) (Decision, error) {
	return l.store.Admit(ctx, key, bytes, l.now(), l.limits)
}

// Prune removes expired windows from the store.
func (l *Limiter) Prune(ctx context.Context) (int, error) {
	return l.store.Prune(ctx, l.now(), l.limits)
}
