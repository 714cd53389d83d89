package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/trendflow-go/internal/services/trending/handlers"
	"github.com/trendflow-go/internal/services/trending/repository"
	"github.com/trendflow-go/internal/services/trending/service"
	"github.com/trendflow-go/pkg/cache"
	"github.com/trendflow-go/pkg/config"
	"github.com/trendflow-go/pkg/database"
	"github.com/trendflow-go/pkg/logger"
	"github.com/trendflow-go/pkg/metrics"
	"github.com/trendflow-go/pkg/middleware/ratelimit"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	httpServer *http.Server
	db         *database.DB
	redis      *redis.Client
	cron       *cron.Cron
}

func New(cfg *config.Config, log logger.Logger) (*Server, error) {
	// Initialize database
	db, err := database.New(database.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Name:         cfg.Database.Name,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	// Test Redis connection
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// Initialize repositories
	counters := repository.NewCounterRepository(
		redisClient,
		cfg.Trending.ReadTimeout,
		cfg.Trending.WriteTimeout,
		cfg.Trending.BucketRetention,
	)
	catalogRepo := repository.NewCatalogRepository(db)

	// Initialize result cache
	resultCache := cache.NewRedisCache(redisClient, &cache.Options{
		DefaultTTL: cfg.Trending.TrendingTTL,
	})

	// Initialize service
	trendingService := service.NewTrendingService(counters, catalogRepo, resultCache, cfg.Trending, log)

	// Initialize handlers
	trendingHandlers := handlers.NewTrendingHandlers(trendingService, cfg.Server.AdminToken, log)

	// Setup HTTP server
	router := setupRouter(trendingHandlers, cfg, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Schedule cache warming
	warmCron := cron.New(cron.WithLocation(time.UTC))
	if _, err := warmCron.AddFunc(cfg.Trending.WarmCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := trendingService.WarmCategoryTrending(ctx); err != nil {
			log.Warn("cache warm job failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule cache warm job: %w", err)
	}

	return &Server{
		config:     cfg,
		logger:     log,
		httpServer: httpServer,
		db:         db,
		redis:      redisClient,
		cron:       warmCron,
	}, nil
}

func setupRouter(h *handlers.TrendingHandlers, cfg *config.Config, log logger.Logger) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(loggingMiddleware(log))
	router.Use(metricsMiddleware())

	// Health checks
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	trackLimiter := ratelimit.NewIPRateLimiter(cfg.Trending.TrackRateLimit, cfg.Trending.TrackRateBurst)

	// API routes
	v1 := router.Group("/api/v1/trending")
	{
		// Tracking endpoints
		track := v1.Group("/track", ratelimit.Middleware(trackLimiter))
		{
			track.POST("/view/:productId", h.TrackView)
			track.GET("/comparison", h.TrackComparison)
		}

		// Ranking endpoints
		v1.GET("/instruments", h.GetTrending)
		v1.GET("/comparisons", h.GetComparisons)
		v1.GET("/by-category", h.GetByCategory)

		// Analytics and administration
		v1.GET("/analytics", h.GetAnalytics)
		v1.POST("/cache/clear", h.ClearCache)
	}

	return router
}

func (s *Server) Start() error {
	s.cron.Start()

	s.logger.Info("Starting HTTP server", "port", s.config.Server.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	// Stop scheduled jobs, waiting for a running warm job to finish
	<-s.cron.Stop().Done()

	// Shutdown HTTP server
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	// Close Redis
	if err := s.redis.Close(); err != nil {
		s.logger.Error("Failed to close Redis", "error", err)
	}

	// Close database
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", "error", err)
	}

	return nil
}

// Middleware functions
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, X-Admin-Token, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func loggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		clientIP := c.ClientIP()
		method := c.Request.Method
		statusCode := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			"method", method,
			"path", path,
			"status", statusCode,
			"latency", latency,
			"ip", clientIP,
		)
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()))
		metrics.RecordHTTPDuration(c.Request.Method, path, time.Since(start).Seconds())
	}
}
