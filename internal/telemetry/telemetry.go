// Package telemetry exposes Prometheus collectors for the search service.
package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	searchesTotal              *prometheus.CounterVec
	searchDurationSeconds      *prometheus.HistogramVec
	storeSearchesTotal         *prometheus.CounterVec
	storeSearchDurationSeconds *prometheus.HistogramVec
	rateLimitRejectionsTotal   *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		searchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stylehound_searches_total",
				Help: "Total number of searches finished, labeled by terminal status.",
			},
			[]string{"status"},
		)

		searchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stylehound_search_duration_seconds",
				Help:    "Histogram of end-to-end search durations, labeled by terminal status.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"status"},
		)

		storeSearchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stylehound_store_searches_total",
				Help: "Total number of per-store searches, labeled by store and sub-status.",
			},
			[]string{"store", "status"},
		)

		storeSearchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stylehound_store_search_duration_seconds",
				Help:    "Histogram of single-store search durations, labeled by store.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"store"},
		)

		rateLimitRejectionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stylehound_rate_limit_rejections_total",
				Help: "Total number of rejected requests, labeled by reason (blocked or exceeded).",
			},
			[]string{"reason"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// ObserveSearchFinished records one terminal search outcome.
func ObserveSearchFinished(status string, dur time.Duration) {
	Init()
	searchesTotal.WithLabelValues(status).Inc()
	searchDurationSeconds.WithLabelValues(status).Observe(dur.Seconds())
}

// ObserveStoreSearch records one per-store search outcome.
func ObserveStoreSearch(store, status string, dur time.Duration) {
	Init()
	storeSearchesTotal.WithLabelValues(store, status).Inc()
	storeSearchDurationSeconds.WithLabelValues(store).Observe(dur.Seconds())
}

// IncRateLimited counts a rejected request by reason.
func IncRateLimited(reason string) {
	Init()
	rateLimitRejectionsTotal.WithLabelValues(reason).Inc()
}

// ObserveHTTPRequest records request count and latency for the middleware.
func ObserveHTTPRequest(method, route string, status int, dur time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, httpStatusLabel(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(dur.Seconds())
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

func httpStatusLabel(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}
