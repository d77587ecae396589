// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

// Package metrics holds the Prometheus instrumentation exported at /metrics.
//
// Collectors are registered with the default registry through promauto, so
// any package can record into them without wiring.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync Metrics
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reelsync_sync_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"sync_type"},
	)

	// SyncRecords counts processed items by outcome:
	// "updated", "skipped", "failed", "deferred".
	SyncRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_sync_records_total",
			Help: "Total number of catalog items processed by sync runs",
		},
		[]string{"sync_type", "outcome"},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_sync_errors_total",
			Help: "Total number of sync runs aborted by a structural error",
		},
		[]string{"error_type"},
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reelsync_sync_last_success_timestamp",
			Help: "Unix timestamp of the last successful run per sync type",
		},
		[]string{"sync_type"},
	)

	// Upstream Metrics
	TMDBRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_tmdb_requests_total",
			Help: "Total number of TMDB API requests",
		},
		[]string{"endpoint", "status"},
	)

	TMDBRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reelsync_tmdb_request_duration_seconds",
			Help:    "Duration of TMDB API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reelsync_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_circuit_breaker_requests_total",
			Help: "Total requests through the circuit breaker by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reelsync_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Counter Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_cache_hits_total",
			Help: "Total number of counter cache hits by tier",
		},
		[]string{"tier"}, // "fast", "durable"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_cache_misses_total",
			Help: "Total number of counter cache misses by tier",
		},
		[]string{"tier"},
	)

	CacheStaleServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelsync_cache_stale_served_total",
			Help: "Total number of durable counters served past the refresh window",
		},
	)

	FastTierErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_cache_fast_tier_errors_total",
			Help: "Total number of fast tier failures by operation",
		},
		[]string{"op"}, // "get", "set", "decode"
	)

	RateLimitDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_rate_limit_denied_total",
			Help: "Total number of requests denied by a rate limiter",
		},
		[]string{"scope"}, // "counter_write", "global"
	)

	RateLimitTrackedKeys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reelsync_rate_limit_tracked_keys",
			Help: "Number of live windows held by the counter write limiter",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reelsync_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reelsync_api_active_requests",
			Help: "Number of in-flight API requests",
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// SyncOutcome is the per-run tally RecordSyncRun publishes.
type SyncOutcome struct {
	Updated  int
	Skipped  int
	Failed   int
	Deferred int
}

// RecordSyncRun records a finished sync run. errorType is empty on success.
func RecordSyncRun(syncType string, duration time.Duration, out SyncOutcome, errorType string) {
	SyncDuration.WithLabelValues(syncType).Observe(duration.Seconds())
	SyncRecords.WithLabelValues(syncType, "updated").Add(float64(out.Updated))
	SyncRecords.WithLabelValues(syncType, "skipped").Add(float64(out.Skipped))
	SyncRecords.WithLabelValues(syncType, "failed").Add(float64(out.Failed))
	SyncRecords.WithLabelValues(syncType, "deferred").Add(float64(out.Deferred))

	if errorType != "" {
		SyncErrors.WithLabelValues(errorType).Inc()
		return
	}
	SyncLastSuccess.WithLabelValues(syncType).Set(float64(time.Now().Unix()))
}

// RecordTMDBRequest records one upstream call.
func RecordTMDBRequest(endpoint string, status int, duration time.Duration) {
	TMDBRequests.WithLabelValues(endpoint, statusLabel(status)).Inc()
	TMDBRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// statusLabel buckets HTTP status codes to keep label cardinality bounded.
// 0 means the request never produced a response.
func statusLabel(status int) string {
	switch {
	case status == 0:
		return "error"
	case status == 401, status == 403, status == 404, status == 429:
		return strconv.Itoa(status)
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 200 && status < 300:
		return "2xx"
	default:
		return "other"
	}
}
