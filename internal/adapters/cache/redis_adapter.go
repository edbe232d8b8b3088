package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/patientvoice/backend/internal/domain/providers"
	redisclient "github.com/patientvoice/backend/internal/infrastructure/clients/redis"
)

// RedisAdapter implements the CacheProvider interface using Redis
type RedisAdapter struct {
	client    *redisclient.Client
	keyPrefix string
}

// NewRedisAdapter creates a new Redis cache adapter. Every key is stored under keyPrefix.
func NewRedisAdapter(client *redisclient.Client, keyPrefix string) providers.CacheProvider {
	return &RedisAdapter{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (a *RedisAdapter) key(key string) string {
	return a.keyPrefix + key
}

// Get retrieves a value from cache
func (a *RedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := a.client.Client().Get(ctx, a.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, providers.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}
	return result, nil
}

// Set stores a value in cache with expiration
func (a *RedisAdapter) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	expiration := time.Duration(expirationSeconds) * time.Second
	if err := a.client.Client().Set(ctx, a.key(key), value, expiration).Err(); err != nil {
		return fmt.Errorf("failed to set in cache: %w", err)
	}
	return nil
}

// Delete removes a value from cache
func (a *RedisAdapter) Delete(ctx context.Context, key string) error {
	if err := a.client.Client().Del(ctx, a.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}

// Exists checks if a key exists in cache
func (a *RedisAdapter) Exists(ctx context.Context, key string) (bool, error) {
	result, err := a.client.Client().Exists(ctx, a.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check existence in cache: %w", err)
	}
	return result > 0, nil
}

// Incr atomically increments a counter
func (a *RedisAdapter) Incr(ctx context.Context, key string) (int64, error) {
	result, err := a.client.Client().Incr(ctx, a.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment in cache: %w", err)
	}
	return result, nil
}
