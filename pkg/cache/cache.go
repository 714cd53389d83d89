package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is not found in cache
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the interface for cache operations
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a key from cache
	Delete(ctx context.Context, key string) error

	// Invalidate removes all keys matching a pattern
	Invalidate(ctx context.Context, pattern string) error

	// Ping checks if cache is available
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// Codec defines the interface for encoding/decoding cache values
type Codec interface {
	Encode(value interface{}) ([]byte, error)
	Decode(data []byte, dest interface{}) error
}

// JSONCodec implements Codec using JSON encoding
type JSONCodec struct{}

func (c *JSONCodec) Encode(value interface{}) ([]byte, error) {
	return json.Marshal(value)
}

func (c *JSONCodec) Decode(data []byte, dest interface{}) error {
	return json.Unmarshal(data, dest)
}

// Options represents cache configuration options
type Options struct {
	// DefaultTTL is the TTL used when Set is called with ttl == 0
	DefaultTTL time.Duration

	// Namespace is a prefix for all cache keys
	Namespace string

	// Codec is the encoder/decoder for cache values
	Codec Codec
}

// DefaultOptions returns default cache options
func DefaultOptions() *Options {
	return &Options{
		DefaultTTL: 5 * time.Minute,
		Namespace:  "",
		Codec:      &JSONCodec{},
	}
}
