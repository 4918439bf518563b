/*
idempotency_redis.go - Redis-backed idempotency key store

Shares claims across instances. A key is claimed with SETNX holding a
processing marker; completion overwrites it with the serialized response.
Redis TTLs handle expiry, so an instance that dies mid-request only
blocks the key until the TTL lapses.
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisProcessingMarker = "processing"

// RedisKeyStore implements KeyStore on a shared Redis instance.
type RedisKeyStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisKeyStore(client *redis.Client, ttl time.Duration) *RedisKeyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &RedisKeyStore{client: client, ttl: ttl, prefix: "idem:"}
}

func (s *RedisKeyStore) Claim(ctx context.Context, key string) (Claim, error) {
	k := s.prefix + key

	ok, err := s.client.SetNX(ctx, k, redisProcessingMarker, s.ttl).Result()
	if err != nil {
		return Claim{}, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if ok {
		return Claim{Acquired: true}, nil
	}

	val, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; let the client retry.
		return Claim{InFlight: true}, nil
	}
	if err != nil {
		return Claim{}, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if val == redisProcessingMarker {
		return Claim{InFlight: true}, nil
	}

	var resp CachedResponse
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return Claim{}, fmt.Errorf("failed to decode cached response: %w", err)
	}
	return Claim{Cached: &resp}, nil
}

func (s *RedisKeyStore) Complete(ctx context.Context, key string, resp CachedResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode cached response: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cached response: %w", err)
	}
	return nil
}

func (s *RedisKeyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}
