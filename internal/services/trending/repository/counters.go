package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trendflow-go/pkg/metrics"
	"github.com/trendflow-go/pkg/resilience"
)

// Counter store key namespaces. Hour keys are UTC, formatted YYYYMMDDHH.
const (
	keyTotalViews           = "views:product:total"
	keyHourViewsFmt         = "views:product:hour:%s"
	keyUniqueViewFmt        = "views:product:unique:%d:%s"
	keyComparisonPairs      = "comparisons:pair"
	keyComparisonIndividual = "comparisons:individual"

	hourKeyLayout = "2006010215"

	uniqueMarkerTTL = 24 * time.Hour
)

// PairCount is one entry of the comparison-pair leaderboard.
type PairCount struct {
	ProductA int
	ProductB int
	Count    int64
}

// CounterRepository owns all raw counters in Redis. Every mutation uses the
// store's native atomic increments, so concurrent writers never race. Reads
// go through a circuit breaker so a dead store degrades fast instead of
// stalling every scoring pass on timeouts.
type CounterRepository struct {
	client       *redis.Client
	breaker      *resilience.CircuitBreaker
	readTimeout  time.Duration
	writeTimeout time.Duration
	retention    time.Duration
}

// NewCounterRepository creates a counter repository. retention is the TTL
// applied to hourly view buckets when they are first created.
func NewCounterRepository(client *redis.Client, readTimeout, writeTimeout, retention time.Duration) *CounterRepository {
	return &CounterRepository{
		client:       client,
		breaker:      resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("counter-store")),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		retention:    retention,
	}
}

// HourKey returns the UTC bucket key suffix for t.
func HourKey(t time.Time) string {
	return t.UTC().Format(hourKeyLayout)
}

// PairKey returns the canonical order-independent key for two product ids.
func PairKey(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

func hourViewsKey(t time.Time) string {
	return fmt.Sprintf(keyHourViewsFmt, HourKey(t))
}

// IncrView atomically increments the current hour bucket and the all-time
// set for a product. The bucket TTL is set when the bucket is first created,
// so a busy hour never refreshes its own expiry.
func (r *CounterRepository) IncrView(ctx context.Context, productID int, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	member := strconv.Itoa(productID)
	bucketKey := hourViewsKey(now)

	pipe := r.client.Pipeline()
	hourCmd := pipe.ZIncrBy(ctx, bucketKey, 1, member)
	pipe.ZIncrBy(ctx, keyTotalViews, 1, member)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordStoreError("incr_view")
		return fmt.Errorf("incr view bucket: %w", err)
	}

	// First view of the hour created the bucket
	if hourCmd.Val() == 1 {
		if err := r.client.Expire(ctx, bucketKey, r.retention).Err(); err != nil {
			metrics.RecordStoreError("incr_view")
			return fmt.Errorf("set bucket ttl: %w", err)
		}
	}

	return nil
}

// MarkUniqueView records a visitor id against the product's current hour.
// Used only for unique-view reporting, never for scoring.
func (r *CounterRepository) MarkUniqueView(ctx context.Context, productID int, visitorID string, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	key := fmt.Sprintf(keyUniqueViewFmt, productID, HourKey(now))

	pipe := r.client.Pipeline()
	pipe.SAdd(ctx, key, visitorID)
	pipe.Expire(ctx, key, uniqueMarkerTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordStoreError("mark_unique_view")
		return fmt.Errorf("mark unique view: %w", err)
	}

	return nil
}

// IncrComparison increments the canonical pair counter and both products'
// individual comparison counters. Callers must have rejected equal ids.
func (r *CounterRepository) IncrComparison(ctx context.Context, productID1, productID2 int) error {
	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	pipe := r.client.Pipeline()
	pipe.ZIncrBy(ctx, keyComparisonPairs, 1, PairKey(productID1, productID2))
	pipe.ZIncrBy(ctx, keyComparisonIndividual, 1, strconv.Itoa(productID1))
	pipe.ZIncrBy(ctx, keyComparisonIndividual, 1, strconv.Itoa(productID2))
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordStoreError("incr_comparison")
		return fmt.Errorf("incr comparison: %w", err)
	}

	return nil
}

// HourBucket reads an entire hourly view bucket in one pass: product id to
// view count for every product seen that hour.
func (r *CounterRepository) HourBucket(ctx context.Context, t time.Time) (map[int]float64, error) {
	entries, err := r.readSet(ctx, hourViewsKey(t), "hour_bucket")
	if err != nil {
		return nil, err
	}
	return parseMembers(entries), nil
}

// HourViewTotal returns the total view count recorded in the bucket for t.
func (r *CounterRepository) HourViewTotal(ctx context.Context, t time.Time) (int64, error) {
	bucket, err := r.HourBucket(ctx, t)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, count := range bucket {
		total += int64(count)
	}
	return total, nil
}

// ProductHourCount returns one product's view count in the bucket for t.
func (r *CounterRepository) ProductHourCount(ctx context.Context, productID int, t time.Time) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	count, err := r.client.ZScore(ctx, hourViewsKey(t), strconv.Itoa(productID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		metrics.RecordStoreError("product_hour_count")
		return 0, fmt.Errorf("read product hour count: %w", err)
	}
	return count, nil
}

// IndividualComparisons reads the whole individual comparison counter set.
func (r *CounterRepository) IndividualComparisons(ctx context.Context) (map[int]float64, error) {
	entries, err := r.readSet(ctx, keyComparisonIndividual, "individual_comparisons")
	if err != nil {
		return nil, err
	}
	return parseMembers(entries), nil
}

// IndividualComparisonCount returns one product's comparison participations.
func (r *CounterRepository) IndividualComparisonCount(ctx context.Context, productID int) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	count, err := r.client.ZScore(ctx, keyComparisonIndividual, strconv.Itoa(productID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		metrics.RecordStoreError("individual_comparison_count")
		return 0, fmt.Errorf("read individual comparison count: %w", err)
	}
	return count, nil
}

// TopPairs returns the most compared pairs, highest count first.
func (r *CounterRepository) TopPairs(ctx context.Context, limit int) ([]PairCount, error) {
	ctx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	result, err := r.breaker.ExecuteWithContext(ctx, func(ctx context.Context) (interface{}, error) {
		return r.client.ZRevRangeWithScores(ctx, keyComparisonPairs, 0, int64(limit)-1).Result()
	})
	if err != nil {
		metrics.RecordStoreError("top_pairs")
		return nil, fmt.Errorf("read top pairs: %w", err)
	}

	entries := result.([]redis.Z)
	pairs := make([]PairCount, 0, len(entries))
	for _, entry := range entries {
		member, ok := entry.Member.(string)
		if !ok {
			continue
		}
		parts := strings.SplitN(member, ":", 2)
		if len(parts) != 2 {
			continue
		}
		a, errA := strconv.Atoi(parts[0])
		b, errB := strconv.Atoi(parts[1])
		if errA != nil || errB != nil {
			continue
		}
		pairs = append(pairs, PairCount{ProductA: a, ProductB: b, Count: int64(entry.Score)})
	}

	return pairs, nil
}

// DistinctPairCount returns how many distinct pairs have ever been compared.
func (r *CounterRepository) DistinctPairCount(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	count, err := r.client.ZCard(ctx, keyComparisonPairs).Result()
	if err != nil {
		metrics.RecordStoreError("distinct_pair_count")
		return 0, fmt.Errorf("read pair cardinality: %w", err)
	}
	return count, nil
}

// TopOfHour returns the most viewed product of the bucket for t. A zero
// product id means the bucket is empty.
func (r *CounterRepository) TopOfHour(ctx context.Context, t time.Time) (int, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	entries, err := r.client.ZRevRangeWithScores(ctx, hourViewsKey(t), 0, 0).Result()
	if err != nil {
		metrics.RecordStoreError("top_of_hour")
		return 0, 0, fmt.Errorf("read top of hour: %w", err)
	}
	if len(entries) == 0 {
		return 0, 0, nil
	}

	member, ok := entries[0].Member.(string)
	if !ok {
		return 0, 0, nil
	}
	id, err := strconv.Atoi(member)
	if err != nil {
		return 0, 0, nil
	}

	return id, int64(entries[0].Score), nil
}

// UniqueViewers returns the distinct visitor count for a product in the
// bucket for t.
func (r *CounterRepository) UniqueViewers(ctx context.Context, productID int, t time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	count, err := r.client.SCard(ctx, fmt.Sprintf(keyUniqueViewFmt, productID, HourKey(t))).Result()
	if err != nil {
		metrics.RecordStoreError("unique_viewers")
		return 0, fmt.Errorf("read unique viewers: %w", err)
	}
	return count, nil
}

func (r *CounterRepository) readSet(ctx context.Context, key, op string) ([]redis.Z, error) {
	ctx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	result, err := r.breaker.ExecuteWithContext(ctx, func(ctx context.Context) (interface{}, error) {
		return r.client.ZRangeWithScores(ctx, key, 0, -1).Result()
	})
	if err != nil {
		metrics.RecordStoreError(op)
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	return result.([]redis.Z), nil
}

func parseMembers(entries []redis.Z) map[int]float64 {
	counts := make(map[int]float64, len(entries))
	for _, entry := range entries {
		member, ok := entry.Member.(string)
		if !ok {
			continue
		}
		id, err := strconv.Atoi(member)
		if err != nil {
			continue
		}
		counts[id] = entry.Score
	}
	return counts
}
