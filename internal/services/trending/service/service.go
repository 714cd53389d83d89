package service

import (
	"context"
	"errors"
	"time"

	"github.com/trendflow-go/internal/domain/catalog"
	"github.com/trendflow-go/internal/services/trending/repository"
	"github.com/trendflow-go/pkg/cache"
	"github.com/trendflow-go/pkg/config"
	"github.com/trendflow-go/pkg/logger"
)

var (
	// ErrInvalidArgument is returned for bad input (equal comparison ids,
	// non-positive limits). It is the only error surfaced to callers of the
	// read path.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStoreUnavailable wraps a total inability to reach the counter store.
	// Writes never surface it; reads degrade instead. It only appears in the
	// analytics summary's error field.
	ErrStoreUnavailable = errors.New("counter store unavailable")
)

// Catalog is the narrow read-only interface onto the product catalog
// collaborator. Missing products are not errors anywhere in this service;
// they are silently excluded from results.
type Catalog interface {
	GetProductsByIDs(ctx context.Context, ids []int) ([]catalog.Product, error)
	GetCategoriesOf(ctx context.Context, ids []int) (map[int]int, error)
	ListActiveCategories(ctx context.Context) ([]catalog.Category, error)
}

// TrendingProduct is one entry of a trending ranking, hydrated for display.
type TrendingProduct struct {
	Product      catalog.Product `json:"product"`
	Score        float64         `json:"score"`
	ViewsLast24h int64           `json:"viewsLast24h"`
}

// ComparisonPair is one entry of the popular-comparisons ranking.
type ComparisonPair struct {
	Count    int64           `json:"count"`
	ProductA catalog.Product `json:"productA"`
	ProductB catalog.Product `json:"productB"`
}

// CategoryTrending is the per-category slice of the breakdown.
type CategoryTrending struct {
	CategoryName string            `json:"categoryName"`
	TopProducts  []TrendingProduct `json:"topProducts"`
}

// TrendingService is the popularity engine: ingestion, decay scoring,
// ranking and the cache policy around it. It is stateless apart from the
// injected stores, so any number of instances can run concurrently.
type TrendingService struct {
	counters *repository.CounterRepository
	catalog  Catalog
	cache    cache.Cache
	cfg      config.TrendingConfig
	logger   logger.Logger
	now      func() time.Time
}

// NewTrendingService creates the engine. Zero-valued policy fields fall back
// to the launch defaults so partially populated configs stay safe.
func NewTrendingService(counters *repository.CounterRepository, cat Catalog, resultCache cache.Cache, cfg config.TrendingConfig, log logger.Logger) *TrendingService {
	if cfg.DecayStep == 0 {
		cfg.DecayStep = 0.02
	}
	if cfg.DecayFloor == 0 {
		cfg.DecayFloor = 0.1
	}
	if cfg.ComparisonWeight == 0 {
		cfg.ComparisonWeight = 3
	}
	if cfg.WindowHours == 0 {
		cfg.WindowHours = 24
	}
	if cfg.OverfetchFactor == 0 {
		cfg.OverfetchFactor = 2
	}
	if cfg.CategoryTopN == 0 {
		cfg.CategoryTopN = 5
	}
	if cfg.TrendingTTL == 0 {
		cfg.TrendingTTL = time.Hour
	}
	if cfg.ComparisonsTTL == 0 {
		cfg.ComparisonsTTL = 30 * time.Minute
	}
	if cfg.ByCategoryTTL == 0 {
		cfg.ByCategoryTTL = 2 * time.Hour
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 2 * time.Second
	}

	return &TrendingService{
		counters: counters,
		catalog:  cat,
		cache:    resultCache,
		cfg:      cfg,
		logger:   log,
		now:      time.Now,
	}
}

// bestEffort is the single place where the fire-and-forget write policy
// lives: store failures are logged, never returned. View and comparison
// tracking rides along primary request paths and must not be able to break
// them. Reports whether the write landed so callers can count real events.
func (s *TrendingService) bestEffort(op string, fn func(ctx context.Context) error) bool {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		s.logger.Warn("best-effort write failed", "op", op, "error", err)
		return false
	}
	return true
}
