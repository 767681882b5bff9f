package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/usdatahub/usdata-mcp/pkg/httpclient"
)

// Gate implements httpclient.Throttle over a StateStore.
type Gate struct {
	Store          StateStore
	Now            func() time.Time
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	mu sync.Mutex
}

// NewGate creates a gate with the default backoff bounds.
func NewGate(store StateStore) *Gate {
	return &Gate{
		Store:          store,
		Now:            func() time.Time { return time.Now().UTC() },
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
	}
}

// Before reports how long a call for this bucket must wait, or zero when
// the bucket is clear.
func (g *Gate) Before(ctx context.Context, bucket string) (time.Duration, error) {
	if g == nil || g.Store == nil {
		return 0, nil
	}
	state, err := g.Store.Get(ctx, bucket)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return 0, nil
		}
		return 0, err
	}
	now := g.now()
	if until := state.ThrottledUntil; until != nil && now.Before(*until) {
		return until.Sub(now), nil
	}
	if state.Remaining == 0 && state.ResetAt != nil && now.Before(*state.ResetAt) {
		return state.ResetAt.Sub(now), nil
	}
	return 0, nil
}

// After records the outcome of an exchange. A 429 marks the bucket
// throttled for the server-directed interval, or an escalating backoff
// when the server gave none. The read-modify-write runs under a lock so
// concurrent 429s on one bucket each advance the escalation counter.
func (g *Gate) After(ctx context.Context, bucket string, status int, header http.Header) error {
	if g == nil || g.Store == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	state, err := g.Store.Get(ctx, bucket)
	if err != nil && !errors.Is(err, ErrStateNotFound) {
		return err
	}
	if errors.Is(err, ErrStateNotFound) {
		state = State{Bucket: bucket, Remaining: -1}
	}

	state.LastStatus = status
	state.UpdatedAt = now

	get := func(key string) string { return header.Get(key) }
	if limit, ok := parseHeaderInt(get, "x-ratelimit-limit"); ok {
		state.Limit = limit
	}
	if remaining, ok := parseHeaderInt(get, "x-ratelimit-remaining"); ok {
		state.Remaining = remaining
	} else if state.Remaining == 0 {
		// No header this round; do not keep reporting an exhausted quota.
		state.Remaining = -1
	}
	if resetAt, ok := parseResetAt(get); ok {
		state.ResetAt = &resetAt
	}

	if status == http.StatusTooManyRequests {
		state.Attempts++
		delay := httpclient.ParseRetryAfter(header, now)
		if delay <= 0 {
			delay = g.nextBackoff(state.Attempts)
		}
		until := now.Add(delay)
		state.ThrottledUntil = &until
		return g.Store.Upsert(ctx, state)
	}

	state.Attempts = 0
	state.ThrottledUntil = nil
	return g.Store.Upsert(ctx, state)
}

func (g *Gate) now() time.Time {
	if g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

func (g *Gate) nextBackoff(attempt int) time.Duration {
	initial := g.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}
	maximum := g.MaxBackoff
	if maximum <= 0 {
		maximum = time.Minute
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	return delay
}

var _ httpclient.Throttle = (*Gate)(nil)
