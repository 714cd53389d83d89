package service

import (
	"context"
	"fmt"

	"github.com/trendflow-go/pkg/metrics"
)

// TrackView records a product view in the current hour bucket. If visitorID
// is non-empty the visitor is also added to the hour's unique-view marker.
// The call never fails: store errors are swallowed by the best-effort policy
// because view tracking is a side channel of the product page, not part of
// its correctness.
func (s *TrendingService) TrackView(productID int, visitorID string) {
	if productID <= 0 {
		return
	}

	if s.bestEffort("track_view", func(ctx context.Context) error {
		if err := s.counters.IncrView(ctx, productID, s.now()); err != nil {
			return err
		}
		if visitorID != "" {
			return s.counters.MarkUniqueView(ctx, productID, visitorID, s.now())
		}
		return nil
	}) {
		metrics.ViewsTracked.Inc()
	}
}

// TrackComparison records a comparison between two distinct products: the
// canonical pair counter goes up by one, and each side's individual counter
// goes up by one. Equal ids are rejected before anything is written; store
// failures after validation are swallowed like TrackView's.
func (s *TrendingService) TrackComparison(productID1, productID2 int) error {
	if productID1 <= 0 || productID2 <= 0 {
		return fmt.Errorf("%w: product ids must be positive", ErrInvalidArgument)
	}
	if productID1 == productID2 {
		return fmt.Errorf("%w: cannot compare a product with itself", ErrInvalidArgument)
	}

	if s.bestEffort("track_comparison", func(ctx context.Context) error {
		return s.counters.IncrComparison(ctx, productID1, productID2)
	}) {
		metrics.ComparisonsTracked.Inc()
	}
	return nil
}
