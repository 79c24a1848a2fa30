// Package middleware also hosts the Prometheus instrumentation
// middleware exposed at GET /metrics (§6, §10).
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cricket_agent_http_requests_total",
		Help: "Total HTTP requests processed, labeled by route and status.",
	}, []string{"route", "method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cricket_agent_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cricket_agent_cache_hits_total",
		Help: "Cache hits, labeled by cache name.",
	}, []string{"cache"})
)

// statusRecorder captures the status code written by the downstream
// handler so it can be labeled on the counter after the fact.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Metrics wraps handler with request-count and latency instrumentation.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// RecordCacheHit increments the named cache's hit counter (§4.6
// response cache, upstream negative cache).
func RecordCacheHit(cacheName string) {
	cacheHitsTotal.WithLabelValues(cacheName).Inc()
}
