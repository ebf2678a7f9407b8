// Package metrics provides the Prometheus registry and HTTP handler for the
// OpenML client. All metrics are defined in their respective packages
// (client, cache, fallback) to keep them modular and avoid import cycles.
//
// This package also documents every available metric.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the OpenML client.
// All metrics are registered automatically via promauto in their packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the metrics exposed by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - openml_requests_total{version, method, status} (Counter): Requests by API version, method and HTTP status
//   - openml_request_duration_seconds{version, method} (Histogram): Request duration, retries included
//   - openml_errors_total{class} (Counter): Failed requests by class (client, server, network, timeout)
//   - openml_checksum_failures_total (Counter): Bodies failing MD5 verification
//
// Retry Metrics (pkg/client):
//   - openml_retries_total{version, policy} (Counter): Retry attempts by API version and retry policy
//   - openml_retry_backoff_seconds{policy} (Histogram): Backoff before each retry
//   - openml_retry_exhausted_total{version} (Counter): Requests that used up their retries
//
// Cache Metrics (pkg/cache):
//   - openml_cache_hits_total{store} (Counter): Cache hits by store (file, redis)
//   - openml_cache_misses_total{reason} (Counter): Misses by reason (absent, expired, invalid)
//   - openml_cache_stored_bytes_total{store} (Counter): Body bytes written to the cache
//   - openml_cache_errors_total{operation} (Counter): Cache operation errors (load, save, invalidate)
//
// Fallback Metrics (pkg/fallback):
//   - openml_fallback_total{resource, operation, from, to} (Counter): Operations served by the fallback version
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(openml_cache_hits_total[5m])) /
//   (sum(rate(openml_cache_hits_total[5m])) + sum(rate(openml_cache_misses_total[5m])))
//
//   # Retry Exhaustion by Version
//   sum by (version) (rate(openml_retry_exhausted_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(openml_request_duration_seconds_bucket[5m]))
//
//   # Operations Needing the Fallback Version
//   sum by (resource, operation) (rate(openml_fallback_total[1h]))
