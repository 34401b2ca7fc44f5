// Package idempotency stores idempotency keys in Redis.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/academy-commerce/internal/domain/checkout"
)

const keyPrefix = "idemp:"

var _ checkout.IdempotencyStore = (*RedisStore)(nil)

// RedisStore reserves keys with SETNX and maps them to the resulting order
// number. Both records expire after ttl.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore returns a RedisStore using rdb.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// NewClient parses a redis:// URL and returns a connected client.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

func lockKey(scope, key string) string { return keyPrefix + "lock:" + scope + ":" + key }
func mapKey(scope, key string) string  { return keyPrefix + "map:" + scope + ":" + key }

// Acquire reserves the key. It returns false if the key is already reserved.
func (s *RedisStore) Acquire(ctx context.Context, scope, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, lockKey(scope, key), "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserving idempotency key: %w", err)
	}
	return ok, nil
}

// Release drops the reservation.
func (s *RedisStore) Release(ctx context.Context, scope, key string) error {
	if err := s.rdb.Del(ctx, lockKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("releasing idempotency key: %w", err)
	}
	return nil
}

// Remember maps the key to the order number it produced.
func (s *RedisStore) Remember(ctx context.Context, scope, key, orderNumber string) error {
	if err := s.rdb.Set(ctx, mapKey(scope, key), orderNumber, s.ttl).Err(); err != nil {
		return fmt.Errorf("remembering idempotency key: %w", err)
	}
	return nil
}

// Recall returns the order number remembered for the key.
func (s *RedisStore) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, mapKey(scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("recalling idempotency key: %w", err)
	}
	return v, true, nil
}
