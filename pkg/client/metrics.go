package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openml_requests_total",
		Help: "Total OpenML requests by API version, method and status",
	}, []string{"version", "method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "openml_request_duration_seconds",
		Help:    "OpenML request duration in seconds, retries included",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"version", "method"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openml_errors_total",
		Help: "Total failed OpenML requests by error class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openml_retries_total",
		Help: "Total number of retry attempts by API version and policy",
	}, []string{"version", "policy"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "openml_retry_backoff_seconds",
		Help:    "Backoff duration before retries by policy",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"policy"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openml_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by API version",
	}, []string{"version"})

	checksumFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "openml_checksum_failures_total",
		Help: "Total number of response bodies failing MD5 verification",
	})
)
