package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	start   time.Time
	uploads []time.Time
	bytes   int64
}

// MemoryStore keeps windows in a process-local map. It is created empty, entries are added
// lazily on the first request of a key and removed by Prune once their window elapsed.
// State is lost on restart and not shared between instances.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*window)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Admit(_ context.Context, key string, bytes int64, now time.Time, l Limits) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || now.Sub(w.start) > l.Window {
		w = &window{start: now}
		s.windows[key] = w
	}

	retry := l.Window - now.Sub(w.start)
	if len(w.uploads) >= l.MaxUploads {
		return Decision{Reason: TooManyUploads, RetryAfter: retry}, nil
	}
	if w.bytes+bytes > l.MaxBytes {
		return Decision{Reason: TooManyBytes, RetryAfter: retry}, nil
	}

	w.uploads = append(w.uploads, now)
	w.bytes += bytes
	return Decision{Allowed: true}, nil
}

func (s *MemoryStore) Prune(_ context.Context, now time.Time, l Limits) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, w := range s.windows {
		if now.Sub(w.start) > l.Window {
			delete(s.windows, key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
