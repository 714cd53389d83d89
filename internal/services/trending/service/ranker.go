package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/trendflow-go/internal/domain/catalog"
	"github.com/trendflow-go/pkg/cache"
	"github.com/trendflow-go/pkg/metrics"
)

const byCategoryCacheKey = "trending:by-category"

func trendingCacheKey(scope string, limit int) string {
	return fmt.Sprintf("trending:instruments:%s:%d", scope, limit)
}

func comparisonsCacheKey(limit int) string {
	return fmt.Sprintf("popular:comparisons:%d", limit)
}

// GetTrendingProducts returns the top trending products, optionally scoped
// to one category. Cache-first: a hit is re-checked against the catalog so
// products deleted since caching are skipped (never replaced); a miss runs
// the scoring pass and caches the hydrated result.
func (s *TrendingService) GetTrendingProducts(ctx context.Context, limit, categoryID int) ([]TrendingProduct, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidArgument)
	}

	scope := "all"
	if categoryID > 0 {
		scope = strconv.Itoa(categoryID)
	}
	key := trendingCacheKey(scope, limit)

	var cached []TrendingProduct
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		metrics.CacheHits.WithLabelValues("trending").Inc()
		return s.pruneDeleted(ctx, cached), nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		// Unreachable cache is a forced miss, not a failure
		s.logger.Warn("trending cache read failed, recomputing", "key", key, "error", err)
	}
	metrics.CacheMisses.WithLabelValues("trending").Inc()

	candidates, err := s.trendingCandidates(ctx, limit, categoryID)
	if err != nil {
		// Degraded result: serve it, never cache it
		s.logger.Warn("trending candidates degraded, returning empty list", "key", key, "error", err)
		return []TrendingProduct{}, nil
	}

	result, err := s.hydrate(ctx, candidates)
	if err != nil {
		s.logger.Warn("trending hydration degraded, returning empty list", "key", key, "error", err)
		return []TrendingProduct{}, nil
	}
	if len(result) > limit {
		result = result[:limit]
	}
	if result == nil {
		result = []TrendingProduct{}
	}

	if err := s.cache.Set(ctx, key, result, s.cfg.TrendingTTL); err != nil {
		s.logger.Warn("trending cache write failed", "key", key, "error", err)
	}

	return result, nil
}

// GetPopularComparisons returns the most compared product pairs. Pairs with
// a side that no longer resolves in the catalog are dropped.
func (s *TrendingService) GetPopularComparisons(ctx context.Context, limit int) ([]ComparisonPair, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidArgument)
	}

	key := comparisonsCacheKey(limit)

	var cached []ComparisonPair
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		metrics.CacheHits.WithLabelValues("comparisons").Inc()
		return s.prunePairs(ctx, cached), nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("comparisons cache read failed, recomputing", "key", key, "error", err)
	}
	metrics.CacheMisses.WithLabelValues("comparisons").Inc()

	pairs, err := s.counters.TopPairs(ctx, limit)
	if err != nil {
		s.logger.Warn("top pairs read failed, returning empty list", "error", err)
		return []ComparisonPair{}, nil
	}

	ids := make([]int, 0, len(pairs)*2)
	for _, pair := range pairs {
		ids = append(ids, pair.ProductA, pair.ProductB)
	}

	products, err := s.resolveProducts(ctx, ids)
	if err != nil {
		s.logger.Warn("comparison hydration failed, returning empty list", "error", err)
		return []ComparisonPair{}, nil
	}

	result := make([]ComparisonPair, 0, len(pairs))
	for _, pair := range pairs {
		a, okA := products[pair.ProductA]
		b, okB := products[pair.ProductB]
		if !okA || !okB {
			continue
		}
		result = append(result, ComparisonPair{Count: pair.Count, ProductA: a, ProductB: b})
	}

	if err := s.cache.Set(ctx, key, result, s.cfg.ComparisonsTTL); err != nil {
		s.logger.Warn("comparisons cache write failed", "key", key, "error", err)
	}

	return result, nil
}

// GetCategoryTrending builds the per-category breakdown keyed by category
// slug. The expensive part, scoring every product, runs exactly once; the
// per-category split happens in memory instead of re-scanning the counters
// per category.
func (s *TrendingService) GetCategoryTrending(ctx context.Context) (map[string]CategoryTrending, error) {
	var cached map[string]CategoryTrending
	err := s.cache.Get(ctx, byCategoryCacheKey, &cached)
	if err == nil {
		metrics.CacheHits.WithLabelValues("by_category").Inc()
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("by-category cache read failed, recomputing", "error", err)
	}
	metrics.CacheMisses.WithLabelValues("by_category").Inc()

	categories, err := s.catalog.ListActiveCategories(ctx)
	if err != nil {
		s.logger.Warn("category listing failed, returning empty breakdown", "error", err)
		return map[string]CategoryTrending{}, nil
	}

	entries, err := s.hydrate(ctx, s.scoreAll(ctx))
	if err != nil {
		// Degraded breakdown is served but never cached
		s.logger.Warn("category hydration failed, returning empty breakdown", "error", err)
		return map[string]CategoryTrending{}, nil
	}

	grouped := make(map[int][]TrendingProduct)
	for _, entry := range entries {
		categoryID := entry.Product.CategoryID
		if len(grouped[categoryID]) < s.cfg.CategoryTopN {
			grouped[categoryID] = append(grouped[categoryID], entry)
		}
	}

	result := make(map[string]CategoryTrending, len(categories))
	for _, category := range categories {
		top := grouped[category.ID]
		if len(top) == 0 {
			continue
		}
		result[category.Slug] = CategoryTrending{
			CategoryName: category.Name,
			TopProducts:  top,
		}
	}

	if err := s.cache.Set(ctx, byCategoryCacheKey, result, s.cfg.ByCategoryTTL); err != nil {
		s.logger.Warn("by-category cache write failed", "error", err)
	}

	return result, nil
}

// WarmCategoryTrending refreshes the by-category breakdown ahead of its TTL
// so user requests rarely pay for the full pass.
func (s *TrendingService) WarmCategoryTrending(ctx context.Context) error {
	if err := s.cache.Delete(ctx, byCategoryCacheKey); err != nil {
		return err
	}
	_, err := s.GetCategoryTrending(ctx)
	return err
}

// ClearCache drops every cached ranking. Raw counters are untouched; every
// cached view is reconstructible from them.
func (s *TrendingService) ClearCache(ctx context.Context) error {
	return errors.Join(
		s.cache.Invalidate(ctx, "trending:*"),
		s.cache.Invalidate(ctx, "popular:*"),
	)
}

// hydrate resolves candidates through the catalog, preserving score order
// and silently skipping products that no longer resolve. An error means the
// catalog was unreachable, not that products were missing.
func (s *TrendingService) hydrate(ctx context.Context, candidates []candidate) ([]TrendingProduct, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]int, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}

	products, err := s.resolveProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]TrendingProduct, 0, len(candidates))
	for _, c := range candidates {
		product, ok := products[c.id]
		if !ok {
			continue
		}
		result = append(result, TrendingProduct{
			Product:      product,
			Score:        c.score,
			ViewsLast24h: c.rawViews,
		})
	}

	return result, nil
}

// pruneDeleted re-validates a cached ranking against the catalog: entries
// whose product has been deleted since caching are skipped, not replaced, so
// stale hits are never padded back to the requested length.
func (s *TrendingService) pruneDeleted(ctx context.Context, entries []TrendingProduct) []TrendingProduct {
	if len(entries) == 0 {
		return entries
	}

	ids := make([]int, len(entries))
	for i, entry := range entries {
		ids[i] = entry.Product.ID
	}

	products, err := s.resolveProducts(ctx, ids)
	if err != nil {
		// Catalog down: the cached entries are the best answer available
		s.logger.Warn("cache revalidation failed, serving cached entries", "error", err)
		return entries
	}

	pruned := entries[:0]
	for _, entry := range entries {
		if _, ok := products[entry.Product.ID]; ok {
			pruned = append(pruned, entry)
		}
	}
	return pruned
}

func (s *TrendingService) prunePairs(ctx context.Context, pairs []ComparisonPair) []ComparisonPair {
	if len(pairs) == 0 {
		return pairs
	}

	ids := make([]int, 0, len(pairs)*2)
	for _, pair := range pairs {
		ids = append(ids, pair.ProductA.ID, pair.ProductB.ID)
	}

	products, err := s.resolveProducts(ctx, ids)
	if err != nil {
		s.logger.Warn("cache revalidation failed, serving cached pairs", "error", err)
		return pairs
	}

	pruned := pairs[:0]
	for _, pair := range pairs {
		_, okA := products[pair.ProductA.ID]
		_, okB := products[pair.ProductB.ID]
		if okA && okB {
			pruned = append(pruned, pair)
		}
	}
	return pruned
}

func (s *TrendingService) resolveProducts(ctx context.Context, ids []int) (map[int]catalog.Product, error) {
	products, err := s.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int]catalog.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}
	return byID, nil
}
