package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAPI is the subset of redis.Cmdable used by Redis.
type RedisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis stores blobs as string keys with an expiry.
type Redis struct {
	client    RedisAPI
	keyPrefix string
	ttl       time.Duration
}

// RedisOption configures a Redis provider.
type RedisOption func(*Redis)

// WithRedisKeyPrefix namespaces every key. Default "present-ponder:".
func WithRedisKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.keyPrefix = prefix }
}

// WithRedisTTL sets the key expiry. Zero keeps keys until deleted. Default 25h,
// a little longer than the guest freshness window so the store's own eviction decides.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// NewRedis creates a Redis-backed provider.
func NewRedis(client RedisAPI, opts ...RedisOption) *Redis {
	r := &Redis{client: client, keyPrefix: "present-ponder:", ttl: 25 * time.Hour}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Read(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

func (r *Redis) Write(ctx context.Context, key string, data []byte) error {
	if err := r.client.Set(ctx, r.keyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
