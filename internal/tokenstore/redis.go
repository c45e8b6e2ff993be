package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores records as plain Redis strings. Keys are namespaced
// with an optional prefix so several clients can share one instance.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

// Compile-time check to ensure RedisBackend implements Backend
var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client redis.UniversalClient, prefix string) (*RedisBackend, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}

	return &RedisBackend{client: client, prefix: prefix}, nil
}

func (r *RedisBackend) key(key string) string {
	return r.prefix + key
}

// Get returns the string stored under key.
func (r *RedisBackend) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set stores value without a Redis TTL; expiry is tracked by the marker record.
func (r *RedisBackend) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

// Delete removes key. DEL on a missing key returns 0 and no error.
func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Ping checks connectivity.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
