// Package observability exposes the service's Prometheus metrics.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of open-data API calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"endpoint"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_cache_results_total",
			Help: "Fetch cache results by outcome.",
		},
		[]string{"outcome"},
	)

	cacheOpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetch_cache_op_duration_seconds",
			Help:    "Duration of cache store operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "ok"},
	)

	refreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_refreshes_total",
			Help: "Catalog refresh cycles by outcome.",
		},
		[]string{"outcome"},
	)

	catalogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_records",
			Help: "Number of parking records in the current catalog.",
		},
	)

	syntheticSeriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_synthetic_series_total",
			Help: "Synthetic history series generated, by mode.",
		},
		[]string{"mode"},
	)

	invalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Cache invalidation events processed, by outcome.",
		},
		[]string{"outcome"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(endpoint string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(endpoint).Observe(durationSeconds)
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	ok := "true"
	if err != nil {
		ok = "false"
	}
	cacheOpDurationSeconds.WithLabelValues(op, ok).Observe(durationSeconds)
}

func IncCacheHit()  { cacheResults.WithLabelValues("hit").Inc() }
func IncCacheMiss() { cacheResults.WithLabelValues("miss").Inc() }

func IncRefresh(outcome string) { refreshesTotal.WithLabelValues(outcome).Inc() }

func SetCatalogSize(n int) { catalogSize.Set(float64(n)) }

func IncSyntheticSeries(mode string) { syntheticSeriesTotal.WithLabelValues(mode).Inc() }

func IncInvalidation(outcome string) { invalidationsTotal.WithLabelValues(outcome).Inc() }

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
