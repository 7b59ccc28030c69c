package memstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend is the clustered-deployment implementation of Backend,
// grounded on the SETNX/SCAN idiom used by the pack's Redis-backed job lock
// manager: keys are namespaced strings, TTL maps directly onto Redis's own
// expiry, and prefix search uses SCAN MATCH rather than KEYS so it never
// blocks the server on a large keyspace.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend wraps an already-configured *redis.Client.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("memstore redis get %q: %w", key, err)
	}
	return val, nil
}

func (r *RedisBackend) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("memstore redis put %q: %w", key, err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("memstore redis delete %q: %w", key, err)
	}
	return nil
}

// Search scans the keyspace for prefix* using cursor-based SCAN, never a
// blocking KEYS call, matching the production-safety concern the donor pack
// consistently shows for Redis usage.
func (r *RedisBackend) Search(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		batch, next, err := r.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("memstore redis search %q: %w", prefix, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}
