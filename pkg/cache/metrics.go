package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Miss reasons.
const (
	missAbsent  = "absent"
	missExpired = "expired"
	missInvalid = "invalid"
)

var (
	// CacheHits tracks cache hits by store
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openml_cache_hits_total",
			Help: "Total number of OpenML cache hits",
		},
		[]string{"store"}, // "file", "redis"
	)

	// CacheMisses tracks cache misses by reason
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openml_cache_misses_total",
			Help: "Total number of OpenML cache misses",
		},
		[]string{"reason"}, // "absent", "expired", "invalid"
	)

	// CacheStoredBytes tracks bytes written to the cache by store
	CacheStoredBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openml_cache_stored_bytes_total",
			Help: "Total number of response body bytes written to the OpenML cache",
		},
		[]string{"store"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openml_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "load", "save", "invalidate"
	)
)
