package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// CounterStore implements ports.CounterStore. Keys are used verbatim.
type CounterStore struct {
	client goredis.UniversalClient
}

// NewCounterStore creates a new Redis-backed counter store.
func NewCounterStore(client goredis.UniversalClient) *CounterStore {
	return &CounterStore{client: client}
}

// Increment bumps key by one and resets its TTL to window inside MULTI/EXEC,
// so every hit slides the window forward.
func (s *CounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis counter incr: %w", err)
	}
	return incr.Val(), nil
}

// Get returns the current count. found is false when the key does not exist.
func (s *CounterStore) Get(ctx context.Context, key string) (int64, bool, error) {
	count, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis counter get: %w", err)
	}
	return count, true, nil
}

// Expire sets the TTL on key.
func (s *CounterStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("redis counter expire: %w", err)
	}
	return nil
}
