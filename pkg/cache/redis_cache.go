package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache interface using Redis
type RedisCache struct {
	client  *redis.Client
	options *Options
	codec   Codec
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(client *redis.Client, opts *Options) *RedisCache {
	if opts == nil {
		opts = DefaultOptions()
	}

	if opts.Codec == nil {
		opts.Codec = &JSONCodec{}
	}

	return &RedisCache{
		client:  client,
		options: opts,
		codec:   opts.Codec,
	}
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	key = c.buildKey(key)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return fmt.Errorf("redis get error: %w", err)
	}

	if err := c.codec.Decode(data, dest); err != nil {
		return fmt.Errorf("decode error: %w", err)
	}

	return nil
}

// Set stores a value in cache with TTL
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	key = c.buildKey(key)

	data, err := c.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("encode error: %w", err)
	}

	if ttl == 0 {
		ttl = c.options.DefaultTTL
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

// Delete removes a key from cache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	key = c.buildKey(key)

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete error: %w", err)
	}

	return nil
}

// Invalidate removes all keys matching a pattern
func (c *RedisCache) Invalidate(ctx context.Context, pattern string) error {
	pattern = c.buildKey(pattern)

	// Use SCAN to find keys matching pattern
	var cursor uint64
	var keys []string

	for {
		var err error
		var batch []string

		batch, cursor, err = c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan error: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	// Delete keys in batches
	if len(keys) > 0 {
		pipe := c.client.Pipeline()
		for _, key := range keys {
			pipe.Del(ctx, key)
		}

		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis pipeline delete error: %w", err)
		}
	}

	return nil
}

// Ping checks if cache is available
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the cache connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) buildKey(key string) string {
	if c.options.Namespace != "" {
		return fmt.Sprintf("%s:%s", c.options.Namespace, key)
	}
	return key
}
