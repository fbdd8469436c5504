package store

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/storefront/ports"
	"github.com/redis/go-redis/v9"
)

// RedisNonceStore is a Redis implementation of ports.NonceStore
type RedisNonceStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisNonceStore creates a new Redis nonce store
func NewRedisNonceStore(client redis.UniversalClient) *RedisNonceStore {
	return &RedisNonceStore{
		client: client,
		prefix: "storefront:nonce:",
	}
}

var _ ports.NonceStore = (*RedisNonceStore)(nil)

// Consume atomically claims the nonce with SET NX
func (s *RedisNonceStore) Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}

	ok, err := s.client.SetNX(ctx, s.prefix+nonce, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to consume nonce: %w", err)
	}

	return ok, nil
}

// Release deletes the nonce key
func (s *RedisNonceStore) Release(ctx context.Context, nonce string) error {
	if err := s.client.Del(ctx, s.prefix+nonce).Err(); err != nil {
		return fmt.Errorf("failed to release nonce: %w", err)
	}
	return nil
}
