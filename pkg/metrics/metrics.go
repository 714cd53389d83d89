package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine-wide metrics
var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Ingest metrics
	ViewsTracked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trending_views_tracked_total",
			Help: "Total number of product view events recorded",
		},
	)

	ComparisonsTracked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trending_comparisons_tracked_total",
			Help: "Total number of product comparison events recorded",
		},
	)

	// Scoring metrics
	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trending_scoring_duration_seconds",
			Help:    "Duration of a full trending scoring pass",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trending_store_errors_total",
			Help: "Counter store operations that failed or timed out",
		},
		[]string{"operation"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)
)

// RecordHTTPRequest records an HTTP request metric
func RecordHTTPRequest(method, path, status string) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordHTTPDuration records HTTP request duration
func RecordHTTPDuration(method, path string, duration float64) {
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordStoreError records a failed counter store operation
func RecordStoreError(operation string) {
	StoreErrors.WithLabelValues(operation).Inc()
}
