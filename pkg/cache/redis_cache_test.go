package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func setupTestCache(t *testing.T, opts *Options) (*RedisCache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return NewRedisCache(client, opts), mr
}

func TestRedisCache_GetSet(t *testing.T) {
	c, mr := setupTestCache(t, nil)
	defer mr.Close()

	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key1", testPayload{Name: "alpha", Score: 7}, time.Minute))

	var got testPayload
	require.NoError(t, c.Get(ctx, "key1", &got))
	assert.Equal(t, testPayload{Name: "alpha", Score: 7}, got)
}

func TestRedisCache_Miss(t *testing.T) {
	c, mr := setupTestCache(t, nil)
	defer mr.Close()

	var got testPayload
	err := c.Get(context.Background(), "missing", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_TTL(t *testing.T) {
	c, mr := setupTestCache(t, &Options{DefaultTTL: 30 * time.Second})
	defer mr.Close()

	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "explicit", testPayload{}, time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("explicit"))

	// Zero TTL falls back to the default
	require.NoError(t, c.Set(ctx, "default", testPayload{}, 0))
	assert.Equal(t, 30*time.Second, mr.TTL("default"))

	mr.FastForward(2 * time.Minute)

	var got testPayload
	assert.ErrorIs(t, c.Get(ctx, "explicit", &got), ErrCacheMiss)
}

func TestRedisCache_Delete(t *testing.T) {
	c, mr := setupTestCache(t, nil)
	defer mr.Close()

	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key1", testPayload{}, time.Minute))
	require.NoError(t, c.Delete(ctx, "key1"))

	var got testPayload
	assert.ErrorIs(t, c.Get(ctx, "key1", &got), ErrCacheMiss)
}

func TestRedisCache_Invalidate(t *testing.T) {
	c, mr := setupTestCache(t, nil)
	defer mr.Close()

	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "trending:all:10", testPayload{}, time.Minute))
	require.NoError(t, c.Set(ctx, "trending:all:20", testPayload{}, time.Minute))
	require.NoError(t, c.Set(ctx, "popular:10", testPayload{}, time.Minute))

	require.NoError(t, c.Invalidate(ctx, "trending:*"))

	var got testPayload
	assert.ErrorIs(t, c.Get(ctx, "trending:all:10", &got), ErrCacheMiss)
	assert.ErrorIs(t, c.Get(ctx, "trending:all:20", &got), ErrCacheMiss)
	assert.NoError(t, c.Get(ctx, "popular:10", &got))
}

func TestRedisCache_Namespace(t *testing.T) {
	c, mr := setupTestCache(t, &Options{Namespace: "svc"})
	defer mr.Close()

	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key1", testPayload{Name: "beta"}, time.Minute))
	assert.True(t, mr.Exists("svc:key1"))

	var got testPayload
	require.NoError(t, c.Get(ctx, "key1", &got))
	assert.Equal(t, "beta", got.Name)

	// Invalidation is namespace-scoped too
	require.NoError(t, c.Invalidate(ctx, "key*"))
	assert.False(t, mr.Exists("svc:key1"))
}
