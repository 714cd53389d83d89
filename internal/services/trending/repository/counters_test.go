package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepository(t *testing.T) (*CounterRepository, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	repo := NewCounterRepository(client, 2*time.Second, time.Second, 7*24*time.Hour)
	return repo, mr
}

func TestHourKey(t *testing.T) {
	ts := time.Date(2025, 3, 14, 15, 30, 45, 0, time.UTC)
	assert.Equal(t, "2025031415", HourKey(ts))

	// Non-UTC input is normalized before formatting
	loc := time.FixedZone("UTC+2", 2*3600)
	assert.Equal(t, "2025031415", HourKey(ts.In(loc)))
}

func TestPairKey(t *testing.T) {
	assert.Equal(t, "3:5", PairKey(3, 5))
	assert.Equal(t, "3:5", PairKey(5, 3))
	assert.Equal(t, "12:104", PairKey(104, 12))
}

func TestCounterRepository_IncrView(t *testing.T) {
	repo, mr := setupTestRepository(t)
	defer mr.Close()

	ctx := context.Background()
	now := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

	require.NoError(t, repo.IncrView(ctx, 42, now))
	require.NoError(t, repo.IncrView(ctx, 42, now))
	require.NoError(t, repo.IncrView(ctx, 7, now))

	bucket, err := repo.HourBucket(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{42: 2, 7: 1}, bucket)

	count, err := repo.ProductHourCount(ctx, 42, now)
	require.NoError(t, err)
	assert.Equal(t, 2.0, count)

	// TTL is set when the bucket is created and not refreshed afterwards
	bucketKey := "views:product:hour:2025031415"
	assert.Equal(t, 7*24*time.Hour, mr.TTL(bucketKey))

	mr.FastForward(24 * time.Hour)
	require.NoError(t, repo.IncrView(ctx, 42, now))
	assert.Equal(t, 6*24*time.Hour, mr.TTL(bucketKey))
}

func TestCounterRepository_BucketExpiry(t *testing.T) {
	repo, mr := setupTestRepository(t)
	defer mr.Close()

	ctx := context.Background()
	now := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

	require.NoError(t, repo.IncrView(ctx, 42, now))

	mr.FastForward(7*24*time.Hour + time.Minute)

	bucket, err := repo.HourBucket(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, bucket)
}

func TestCounterRepository_MarkUniqueView(t *testing.T) {
	repo, mr := setupTestRepository(t)
	defer mr.Close()

	ctx := context.Background()
	now := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

	require.NoError(t, repo.MarkUniqueView(ctx, 42, "visitor-a", now))
	require.NoError(t, repo.MarkUniqueView(ctx, 42, "visitor-a", now))
	require.NoError(t, repo.MarkUniqueView(ctx, 42, "visitor-b", now))

	uniques, err := repo.UniqueViewers(ctx, 42, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), uniques)

	// Markers expire after a day
	mr.FastForward(25 * time.Hour)
	uniques, err = repo.UniqueViewers(ctx, 42, now)
	require.NoError(t, err)
	assert.Zero(t, uniques)
}

func TestCounterRepository_Comparisons(t *testing.T) {
	repo, mr := setupTestRepository(t)
	defer mr.Close()

	ctx := context.Background()

	require.NoError(t, repo.IncrComparison(ctx, 3, 5))
	require.NoError(t, repo.IncrComparison(ctx, 5, 3))
	require.NoError(t, repo.IncrComparison(ctx, 5, 9))

	pairs, err := repo.TopPairs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, PairCount{ProductA: 3, ProductB: 5, Count: 2}, pairs[0])
	assert.Equal(t, PairCount{ProductA: 5, ProductB: 9, Count: 1}, pairs[1])

	distinct, err := repo.DistinctPairCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), distinct)

	individual, err := repo.IndividualComparisons(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{3: 2, 5: 3, 9: 1}, individual)

	count, err := repo.IndividualComparisonCount(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 3.0, count)
}

func TestCounterRepository_TopOfHour(t *testing.T) {
	repo, mr := setupTestRepository(t)
	defer mr.Close()

	ctx := context.Background()
	now := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

	// Empty bucket yields a zero product id
	id, views, err := repo.TopOfHour(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.Zero(t, views)

	require.NoError(t, repo.IncrView(ctx, 7, now))
	require.NoError(t, repo.IncrView(ctx, 42, now))
	require.NoError(t, repo.IncrView(ctx, 42, now))

	id, views, err = repo.TopOfHour(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 42, id)
	assert.Equal(t, int64(2), views)
}

func TestCounterRepository_HourViewTotal(t *testing.T) {
	repo, mr := setupTestRepository(t)
	defer mr.Close()

	ctx := context.Background()
	now := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

	require.NoError(t, repo.IncrView(ctx, 1, now))
	require.NoError(t, repo.IncrView(ctx, 2, now))
	require.NoError(t, repo.IncrView(ctx, 2, now))

	total, err := repo.HourViewTotal(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	// Adjacent hours are separate buckets
	total, err = repo.HourViewTotal(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCounterRepository_StoreDown(t *testing.T) {
	repo, mr := setupTestRepository(t)
	mr.Close()

	ctx := context.Background()
	now := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

	assert.Error(t, repo.IncrView(ctx, 1, now))
	assert.Error(t, repo.IncrComparison(ctx, 1, 2))

	_, err := repo.HourBucket(ctx, now)
	assert.Error(t, err)

	_, err = repo.TopPairs(ctx, 10)
	assert.Error(t, err)
}
