package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// RedisStore implements StateStore on Redis so that replicas share one view
// of a source's throttle state.
type RedisStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the expiration for throttle state entries.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a store from an address.
func NewRedisStore(address, password string, db int, opts ...RedisOption) *RedisStore {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(client, opts...)
}

// NewRedisStoreFromClient creates a store from an existing client.
func NewRedisStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		prefix: "usdata:ratelimit:",
		ttl:    time.Hour,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *RedisStore) key(bucket string) string {
	return s.prefix + bucket
}

func (s *RedisStore) Get(ctx context.Context, bucket string) (State, error) {
	data, err := s.client.Get(ctx, s.key(bucket)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return State{}, ErrStateNotFound
		}
		return State{}, fmt.Errorf("ratelimit: redis get: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("ratelimit: decode state: %w", err)
	}
	return state, nil
}

func (s *RedisStore) Upsert(ctx context.Context, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("ratelimit: encode state: %w", err)
	}
	if err := s.client.Set(ctx, s.key(state.Bucket), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis set: %w", err)
	}
	return nil
}

var _ StateStore = (*RedisStore)(nil)
