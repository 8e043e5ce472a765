// Package metrics provides the centralized Prometheus registry reference for
// the flight-search service. All metrics are defined in their respective
// packages (cache, breaker, upstream, finder) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the service.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - flights_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - flights_cache_misses_total (Counter): Cache misses
//   - flights_cache_errors_total{operation} (Counter): Cache operation errors
//
// Breaker Metrics (pkg/breaker):
//   - flights_breaker_state{breaker} (Gauge): 0 = closed, 1 = open
//   - flights_breaker_trips_total{breaker} (Counter): Circuit open transitions
//   - flights_breaker_fast_fails_total{breaker} (Counter): Calls rejected while open
//
// Upstream Metrics (pkg/upstream):
//   - flights_upstream_requests_total{status} (Counter): Requests by HTTP status
//   - flights_upstream_request_duration_seconds (Histogram): Request duration
//   - flights_upstream_errors_total{kind} (Counter): Errors by kind
//   - flights_upstream_retries_total{kind} (Counter): Retry attempts by kind
//   - flights_upstream_retry_backoff_seconds{kind} (Histogram): Backoff durations
//   - flights_upstream_retry_exhausted_total{kind} (Counter): Exhausted retries
//
// Search Metrics (pkg/finder):
//   - flights_searches_total{outcome} (Counter): Searches by outcome
//     (cache_hit, upstream, empty, degraded, error)
//   - flights_search_duration_seconds (Histogram): End-to-end search duration
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(flights_cache_hits_total[5m])) /
//   (sum(rate(flights_cache_hits_total[5m])) + sum(rate(flights_cache_misses_total[5m])))
//
//   # Degradation Rate
//   rate(flights_searches_total{outcome="degraded"}[5m]) /
//   rate(flights_searches_total[5m])
//
//   # Breaker Currently Open
//   flights_breaker_state == 1
//
//   # P95 Search Latency
//   histogram_quantile(0.95, rate(flights_search_duration_seconds_bucket[5m]))
