package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreFromClient(client, opts...), mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	until := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	in := State{
		Bucket:         "census",
		Limit:          500,
		Remaining:      12,
		ThrottledUntil: &until,
		LastStatus:     429,
		Attempts:       2,
		UpdatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Upsert(ctx, in))

	out, err := store.Get(ctx, "census")
	require.NoError(t, err)
	assert.Equal(t, in.Bucket, out.Bucket)
	assert.Equal(t, in.Limit, out.Limit)
	assert.Equal(t, in.Remaining, out.Remaining)
	assert.Equal(t, in.Attempts, out.Attempts)
	require.NotNil(t, out.ThrottledUntil)
	assert.True(t, out.ThrottledUntil.Equal(until))
}

func TestRedisStore_MissingBucket(t *testing.T) {
	store, _ := newTestRedisStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestRedisStore_KeyPrefixAndTTL(t *testing.T) {
	store, mr := newTestRedisStore(t, WithPrefix("test:rl:"), WithTTL(30*time.Second))
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, State{Bucket: "fda", Remaining: -1}))

	require.True(t, mr.Exists("test:rl:fda"))
	ttl := mr.TTL("test:rl:fda")
	assert.Equal(t, 30*time.Second, ttl)

	// Entries expire on their own.
	mr.FastForward(31 * time.Second)
	_, err := store.Get(ctx, "fda")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestGate_OverRedis(t *testing.T) {
	store, _ := newTestRedisStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := fixedGate(store, now)
	ctx := context.Background()

	header := http.Header{"Retry-After": []string{"15"}}
	require.NoError(t, g.After(ctx, "sec", http.StatusTooManyRequests, header))

	// A second gate over the same store sees the throttle, as two replicas
	// sharing one redis would.
	other := fixedGate(store, now)
	wait, err := other.Before(ctx, "sec")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, wait)
}
