package service

import (
	"context"
	"strings"
	"time"
)

// TopProduct is the current hour's top mover.
type TopProduct struct {
	ProductID int   `json:"productId"`
	Views     int64 `json:"views"`
}

// Summary is the operational dashboard snapshot. It is computed straight
// from the counter store on every call; it is cheap enough that caching it
// would only add staleness.
type Summary struct {
	TotalViewsToday         int64       `json:"totalViewsToday"`
	TotalComparisonsAllTime int64       `json:"totalComparisonsAllTime"`
	TopProductCurrentHour   *TopProduct `json:"topProductCurrentHour"`
	Error                   string      `json:"error,omitempty"`
}

// GetSummary assembles the dashboard snapshot: one hourly-bucket read per
// hour elapsed today (UTC), one cardinality read on the comparison pair set,
// and one top-1 read on the current hour. Read failures degrade to a partial
// result with the error field set; the call itself never fails.
func (s *TrendingService) GetSummary(ctx context.Context) Summary {
	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var summary Summary
	var degraded []string

	hoursElapsed := now.Hour() + 1
	viewReadFailed := false
	for h := 0; h < hoursElapsed; h++ {
		total, err := s.counters.HourViewTotal(ctx, midnight.Add(time.Duration(h)*time.Hour))
		if err != nil {
			viewReadFailed = true
			continue
		}
		summary.TotalViewsToday += total
	}
	if viewReadFailed {
		degraded = append(degraded, "views")
	}

	pairCount, err := s.counters.DistinctPairCount(ctx)
	if err != nil {
		degraded = append(degraded, "comparisons")
	} else {
		summary.TotalComparisonsAllTime = pairCount
	}

	topID, topViews, err := s.counters.TopOfHour(ctx, now)
	if err != nil {
		degraded = append(degraded, "top mover")
	} else if topID > 0 {
		summary.TopProductCurrentHour = &TopProduct{ProductID: topID, Views: topViews}
	}

	if len(degraded) > 0 {
		summary.Error = "counter store degraded: " + strings.Join(degraded, ", ")
		s.logger.Warn("analytics summary degraded", "sections", degraded)
	}

	return summary
}
