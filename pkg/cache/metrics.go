package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks result-cache hits by layer (redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flights_cache_hits_total",
			Help: "Total number of flight result cache hits",
		},
		[]string{"layer"}, // "redis"
	)

	// CacheMisses tracks result-cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flights_cache_misses_total",
			Help: "Total number of flight result cache misses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flights_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
