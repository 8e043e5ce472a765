// Package finder orchestrates one flight search: cache read, circuit-
// protected upstream call, cache write, and fallback dispatch when the
// upstream is unavailable. It is the only entry point presentation layers
// should call.
package finder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/tripcache/flight-search/pkg/breaker"
	"github.com/tripcache/flight-search/pkg/cache"
	"github.com/tripcache/flight-search/pkg/degrade"
	"github.com/tripcache/flight-search/pkg/flight"
	"github.com/tripcache/flight-search/pkg/upstream"
)

// Prometheus metrics for search orchestration.
var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flights_searches_total",
		Help: "Total searches by outcome (cache_hit, upstream, empty, degraded, error)",
	}, []string{"outcome"})

	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flights_search_duration_seconds",
		Help:    "End-to-end search duration in seconds",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// Config holds the orchestrator's dependencies and policy. All dependencies
// are injected explicitly; their lifecycle belongs to the composition root.
type Config struct {
	Cache     *cache.Store
	Breaker   *breaker.Breaker
	Upstream  upstream.Searcher
	Fallbacks *degrade.Dispatcher

	// CacheTTL bounds how long positive results stay cached.
	// Zero means cache.DefaultTTL.
	CacheTTL time.Duration

	// UpstreamTimeout bounds the circuit-protected upstream call.
	// A timeout counts as a protected failure like any other.
	UpstreamTimeout time.Duration
}

// Finder composes the cache, breaker, upstream and degradation dispatcher
// into the caller-facing search operation.
type Finder struct {
	cache           *cache.Store
	breaker         *breaker.Breaker
	upstream        upstream.Searcher
	fallbacks       *degrade.Dispatcher
	cacheTTL        time.Duration
	upstreamTimeout time.Duration

	// group collapses concurrent identical searches into one upstream
	// call, keyed by the criteria hash.
	group  singleflight.Group
	logger zerolog.Logger
}

// Response is the outcome of FindItineraries: either real itinerary data or
// an explicit degraded payload, never both and never fabricated data.
type Response struct {
	Results  *flight.ResultSet
	Fallback *degrade.Fallback
}

// Degraded reports whether the response is a fallback instead of results.
func (r *Response) Degraded() bool {
	return r.Fallback != nil
}

// New creates a Finder.
func New(cfg Config) (*Finder, error) {
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if cfg.Breaker == nil {
		return nil, fmt.Errorf("circuit breaker is required")
	}
	if cfg.Upstream == nil {
		return nil, fmt.Errorf("upstream searcher is required")
	}
	if cfg.Fallbacks == nil {
		return nil, fmt.Errorf("degradation dispatcher is required")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = 30 * time.Second
	}

	return &Finder{
		cache:           cfg.Cache,
		breaker:         cfg.Breaker,
		upstream:        cfg.Upstream,
		fallbacks:       cfg.Fallbacks,
		cacheTTL:        cfg.CacheTTL,
		upstreamTimeout: cfg.UpstreamTimeout,
		logger:          log.With().Str("component", "finder").Logger(),
	}, nil
}

// FindItineraries runs one search.
//
// Order is fixed: cache read, then the upstream call through the breaker,
// then the cache write - a non-success result is never cached. Upstream
// unavailability never raises; it is converted into a Fallback by the
// dispatcher. Only caller programming errors (invalid criteria) and
// failures with no registered strategy return an error.
func (f *Finder) FindItineraries(ctx context.Context, criteria flight.Criteria) (*Response, error) {
	criteria = criteria.Normalized()
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		searchDuration.Observe(time.Since(start).Seconds())
	}()

	cached, err := f.cache.Get(ctx, criteria)
	switch {
	case err == nil && !cached.Empty():
		searchesTotal.WithLabelValues("cache_hit").Inc()
		f.logger.Debug().
			Str("origin", criteria.Origin).
			Str("destination", criteria.Destination).
			Int("itineraries", len(cached.Itineraries)).
			Msg("Cache hit")
		return &Response{Results: cached}, nil
	case err != nil && !errors.Is(err, cache.ErrMiss):
		// Storage failure on read: fail open toward the upstream, not
		// toward failing the request.
		f.logger.Warn().Err(err).Msg("Cache read failed, falling through to upstream")
	}

	result, err, shared := f.group.Do(cache.Key(criteria), func() (any, error) {
		return f.searchUpstream(ctx, criteria)
	})
	if err != nil {
		fallback, unhandled := f.fallbacks.Handle(err, criteria)
		if unhandled != nil {
			searchesTotal.WithLabelValues("error").Inc()
			return nil, unhandled
		}
		searchesTotal.WithLabelValues("degraded").Inc()
		return &Response{Fallback: fallback}, nil
	}

	rs := result.(*flight.ResultSet)
	outcome := "upstream"
	if rs.Empty() {
		outcome = "empty"
	}
	searchesTotal.WithLabelValues(outcome).Inc()
	if shared {
		f.logger.Debug().Msg("Search collapsed into concurrent identical request")
	}
	return &Response{Results: rs}, nil
}

// searchUpstream calls the scraper through the circuit breaker and persists
// non-empty results. Cache-write failures are logged and swallowed: a failed
// write must not fail an otherwise-successful search.
func (f *Finder) searchUpstream(ctx context.Context, criteria flight.Criteria) (*flight.ResultSet, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.upstreamTimeout)
	defer cancel()

	var rs *flight.ResultSet
	err := f.breaker.Execute(callCtx, func(ctx context.Context) error {
		result, err := f.upstream.Search(ctx, criteria)
		if err != nil {
			return err
		}
		rs = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	if rs.Empty() {
		f.logger.Info().
			Str("origin", criteria.Origin).
			Str("destination", criteria.Destination).
			Msg("Upstream returned no itineraries, skipping cache write")
		return rs, nil
	}

	if err := f.cache.Put(ctx, rs, f.cacheTTL); err != nil {
		f.logger.Warn().Err(err).Msg("Cache write failed, returning uncached result")
	} else {
		f.logger.Debug().
			Int("itineraries", len(rs.Itineraries)).
			Dur("ttl", f.cacheTTL).
			Msg("Cached upstream result")
	}
	return rs, nil
}
