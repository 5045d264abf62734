package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/reviewmesh/logging"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	// TTL applied when Set is called with a zero ttl.
	TTL    time.Duration
	Logger logging.Logger
}

// Redis is a shared cache backed by a Redis server. Entries expire after
// their TTL.
type Redis struct {
	client redis.UniversalClient
	opts   RedisOptions
}

// NewRedis connects to the server described by a redis:// URL.
func NewRedis(url string, optFns ...func(o *RedisOptions)) (*Redis, error) {
	ro, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisFromClient(redis.NewClient(ro), optFns...), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client redis.UniversalClient, optFns ...func(o *RedisOptions)) *Redis {
	opts := RedisOptions{TTL: DefaultTTL}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Redis{client: client, opts: opts}
}

// Get returns the cached value. Missing keys and unreachable servers are misses.
func (c *Redis) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.opts.Logger.Warn("cache lookup failed", "error", err.Error())
		}
		return "", false
	}
	return v, true
}

// Set stores value with ttl, or the configured default when ttl is zero.
func (c *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.opts.TTL
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Redis) Close() error { return c.client.Close() }
