// Package ratelimit tracks per-source throttle state observed from upstream
// responses (HTTP 429, Retry-After, x-ratelimit-* headers) and holds calls
// back before they hit a source that is known to be throttling.
//
// State lives in a StateStore: the in-memory store is the default; the
// Redis store lets multiple replicas share one view of a source's limits.
package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
)

// ErrStateNotFound is returned when a bucket has no recorded state.
var ErrStateNotFound = errors.New("ratelimit: state not found")

// State is the recorded throttle condition of one source bucket.
type State struct {
	Bucket         string     `json:"bucket"`
	Limit          int        `json:"limit,omitempty"`
	Remaining      int        `json:"remaining"`
	ResetAt        *time.Time `json:"reset_at,omitempty"`
	ThrottledUntil *time.Time `json:"throttled_until,omitempty"`
	LastStatus     int        `json:"last_status"`
	Attempts       int        `json:"attempts"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// StateStore persists throttle state per bucket.
type StateStore interface {
	Get(ctx context.Context, bucket string) (State, error)
	Upsert(ctx context.Context, state State) error
}

// MemoryStore is the process-local StateStore.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: map[string]State{}}
}

func (s *MemoryStore) Get(_ context.Context, bucket string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[bucket]
	if !ok {
		return State{}, ErrStateNotFound
	}
	return state, nil
}

func (s *MemoryStore) Upsert(_ context.Context, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[state.Bucket] = state
	return nil
}

func parseHeaderInt(get func(string) string, key string) (int, bool) {
	value := get(key)
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func parseResetAt(get func(string) string) (time.Time, bool) {
	value := get("x-ratelimit-reset")
	if value == "" {
		return time.Time{}, false
	}
	unix, err := strconv.ParseInt(value, 10, 64)
	if err != nil || unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0).UTC(), true
}
