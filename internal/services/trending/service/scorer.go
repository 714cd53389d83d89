package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/trendflow-go/pkg/metrics"
)

// candidate is one scored product before hydration.
type candidate struct {
	id       int
	score    float64
	rawViews int64
}

// decayWeight returns the multiplier for a view h hours old: linear decay
// floored so old-but-in-window views never drop below DecayFloor.
func (s *TrendingService) decayWeight(h int) float64 {
	w := 1.0 - float64(h)*s.cfg.DecayStep
	if w < s.cfg.DecayFloor {
		w = s.cfg.DecayFloor
	}
	return w
}

// scoreAll runs the full scoring pass: one sorted-set read per hour in the
// window across all products, plus one read of the individual comparison
// counters. An hour whose read fails contributes zero and the pass continues;
// a degraded ranking beats no ranking. The returned slice is sorted by score
// descending with ties broken by ascending product id, which makes the order
// a pure deterministic function of counter state and the current hour.
func (s *TrendingService) scoreAll(ctx context.Context) []candidate {
	timer := prometheus.NewTimer(metrics.ScoringDuration)
	defer timer.ObserveDuration()

	now := s.now()
	scores := make(map[int]float64)
	raw := make(map[int]int64)

	for h := 0; h < s.cfg.WindowHours; h++ {
		bucket, err := s.counters.HourBucket(ctx, now.Add(-time.Duration(h)*time.Hour))
		if err != nil {
			s.logger.Debug("hour bucket read failed, counting zero", "hoursAgo", h, "error", err)
			continue
		}

		weight := s.decayWeight(h)
		for id, count := range bucket {
			scores[id] += count * weight
			raw[id] += int64(count)
		}
	}

	individual, err := s.counters.IndividualComparisons(ctx)
	if err != nil {
		s.logger.Debug("individual comparison read failed, counting zero", "error", err)
	} else {
		for id, count := range individual {
			scores[id] += count * s.cfg.ComparisonWeight
		}
	}

	candidates := make([]candidate, 0, len(scores))
	for id, score := range scores {
		candidates = append(candidates, candidate{id: id, score: score, rawViews: raw[id]})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})

	return candidates
}

// trendingCandidates over-fetches the top candidates so a category filter,
// and later the catalog hydration, can discard entries and still usually
// fill the limit without a second scoring pass. Trimming to the requested
// limit happens after hydration, once the survivors are known.
func (s *TrendingService) trendingCandidates(ctx context.Context, limit, categoryID int) ([]candidate, error) {
	candidates := s.scoreAll(ctx)

	overfetch := limit * s.cfg.OverfetchFactor
	if len(candidates) > overfetch {
		candidates = candidates[:overfetch]
	}

	if categoryID > 0 {
		ids := make([]int, len(candidates))
		for i, c := range candidates {
			ids[i] = c.id
		}

		memberships, err := s.catalog.GetCategoriesOf(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("category filter lookup: %w", err)
		}

		filtered := candidates[:0]
		for _, c := range candidates {
			if memberships[c.id] == categoryID {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}

	return candidates, nil
}

// ScoreOf computes the trending score for a single product without a full
// scoring pass. Debug and analytics path.
func (s *TrendingService) ScoreOf(ctx context.Context, productID int) (float64, error) {
	if productID <= 0 {
		return 0, fmt.Errorf("%w: product id must be positive", ErrInvalidArgument)
	}

	now := s.now()
	var score float64
	failures := 0

	for h := 0; h < s.cfg.WindowHours; h++ {
		count, err := s.counters.ProductHourCount(ctx, productID, now.Add(-time.Duration(h)*time.Hour))
		if err != nil {
			failures++
			continue
		}
		score += count * s.decayWeight(h)
	}

	individual, err := s.counters.IndividualComparisonCount(ctx, productID)
	if err != nil {
		failures++
	} else {
		score += individual * s.cfg.ComparisonWeight
	}

	if failures == s.cfg.WindowHours+1 {
		return 0, fmt.Errorf("%w: every bucket read failed", ErrStoreUnavailable)
	}

	return score, nil
}

// ViewsLast24h sums the raw, non-decayed view counts for a product over the
// scoring window. Display value ("1,204 views today"), separate from the
// decayed score.
func (s *TrendingService) ViewsLast24h(ctx context.Context, productID int) (int64, error) {
	if productID <= 0 {
		return 0, fmt.Errorf("%w: product id must be positive", ErrInvalidArgument)
	}

	now := s.now()
	var total int64

	for h := 0; h < s.cfg.WindowHours; h++ {
		count, err := s.counters.ProductHourCount(ctx, productID, now.Add(-time.Duration(h)*time.Hour))
		if err != nil {
			continue
		}
		total += int64(count)
	}

	return total, nil
}
