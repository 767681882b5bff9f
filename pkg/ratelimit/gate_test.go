package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedGate(store StateStore, at time.Time) *Gate {
	g := NewGate(store)
	g.Now = func() time.Time { return at }
	return g
}

func TestGate_CleanBucketDoesNotWait(t *testing.T) {
	g := NewGate(NewMemoryStore())
	wait, err := g.Before(context.Background(), "census")
	require.NoError(t, err)
	assert.Zero(t, wait)
}

func TestGate_429SetsThrottleFromRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	g := fixedGate(store, now)
	ctx := context.Background()

	header := http.Header{"Retry-After": []string{"30"}}
	require.NoError(t, g.After(ctx, "bls", http.StatusTooManyRequests, header))

	wait, err := g.Before(ctx, "bls")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, wait)

	// Other buckets are unaffected.
	wait, err = g.Before(ctx, "census")
	require.NoError(t, err)
	assert.Zero(t, wait)
}

func TestGate_429WithoutRetryAfterEscalates(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	g := fixedGate(store, now)
	ctx := context.Background()

	require.NoError(t, g.After(ctx, "fda", http.StatusTooManyRequests, http.Header{}))
	wait1, _ := g.Before(ctx, "fda")

	require.NoError(t, g.After(ctx, "fda", http.StatusTooManyRequests, http.Header{}))
	wait2, _ := g.Before(ctx, "fda")

	assert.Equal(t, time.Second, wait1)
	assert.Equal(t, 2*time.Second, wait2)
}

func TestGate_SuccessClearsThrottle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	g := fixedGate(store, now)
	ctx := context.Background()

	require.NoError(t, g.After(ctx, "sec", http.StatusTooManyRequests, http.Header{}))
	require.NoError(t, g.After(ctx, "sec", http.StatusOK, http.Header{}))

	wait, err := g.Before(ctx, "sec")
	require.NoError(t, err)
	assert.Zero(t, wait)

	state, err := store.Get(ctx, "sec")
	require.NoError(t, err)
	assert.Zero(t, state.Attempts)
	assert.Nil(t, state.ThrottledUntil)
}

func TestGate_QuotaHeadersHoldUntilReset(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reset := now.Add(45 * time.Second)
	store := NewMemoryStore()
	g := fixedGate(store, now)
	ctx := context.Background()

	header := http.Header{}
	header.Set("x-ratelimit-limit", "100")
	header.Set("x-ratelimit-remaining", "0")
	header.Set("x-ratelimit-reset", "1772366445") // 45s after now

	require.NoError(t, g.After(ctx, "epa", http.StatusOK, header))

	wait, err := g.Before(ctx, "epa")
	require.NoError(t, err)
	assert.Equal(t, reset.Sub(now), wait)

	state, err := store.Get(ctx, "epa")
	require.NoError(t, err)
	assert.Equal(t, 100, state.Limit)
	assert.Equal(t, 0, state.Remaining)
}

func TestGate_MissingRemainingHeaderClearsExhaustion(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	g := fixedGate(store, now)
	ctx := context.Background()

	header := http.Header{}
	header.Set("x-ratelimit-remaining", "0")
	require.NoError(t, g.After(ctx, "epa", http.StatusOK, header))

	// The next response carries no quota headers; remaining must not stay
	// pinned at zero.
	require.NoError(t, g.After(ctx, "epa", http.StatusOK, http.Header{}))

	state, err := store.Get(ctx, "epa")
	require.NoError(t, err)
	assert.Equal(t, -1, state.Remaining)
}

func TestGate_ExpiredThrottleDoesNotWait(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	g := fixedGate(store, start)
	ctx := context.Background()

	header := http.Header{"Retry-After": []string{"10"}}
	require.NoError(t, g.After(ctx, "bls", http.StatusTooManyRequests, header))

	g.Now = func() time.Time { return start.Add(11 * time.Second) }
	wait, err := g.Before(ctx, "bls")
	require.NoError(t, err)
	assert.Zero(t, wait)
}

func TestGate_ConcurrentRejectionsAllEscalate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	g := fixedGate(store, now)
	ctx := context.Background()

	const rejections = 16
	var wg sync.WaitGroup
	for i := 0; i < rejections; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, g.After(ctx, "fda", http.StatusTooManyRequests, http.Header{}))
		}()
	}
	wg.Wait()

	state, err := store.Get(ctx, "fda")
	require.NoError(t, err)
	assert.Equal(t, rejections, state.Attempts)
}

func TestNextBackoff_Caps(t *testing.T) {
	g := NewGate(NewMemoryStore())
	g.InitialBackoff = time.Second
	g.MaxBackoff = 8 * time.Second

	assert.Equal(t, time.Second, g.nextBackoff(1))
	assert.Equal(t, 2*time.Second, g.nextBackoff(2))
	assert.Equal(t, 4*time.Second, g.nextBackoff(3))
	assert.Equal(t, 8*time.Second, g.nextBackoff(4))
	assert.Equal(t, 8*time.Second, g.nextBackoff(20))
}
