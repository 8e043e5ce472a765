// Package degrade converts upstream failures into explicit degraded
// responses instead of propagating raw errors to callers.
//
// Strategies are registered in an explicit table at construction time,
// most specific first; there is no runtime discovery, so registration order
// is visible at the composition root and in tests. A failure with no
// registered strategy is handed back unhandled rather than silently
// swallowed.
package degrade

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tripcache/flight-search/pkg/flight"
)

// StatusDegraded marks a fallback payload as a reduced, non-authoritative
// response. A Fallback never carries flight data.
const StatusDegraded = "degraded"

// Fallback is the degraded response returned in place of a result set.
type Fallback struct {
	// Message is the caller-facing explanation.
	Message string `json:"message"`

	// Status is always StatusDegraded.
	Status string `json:"status"`

	// Criteria echoes the search that failed so callers can retry it.
	Criteria flight.Criteria `json:"criteria"`

	// RetryAfterSeconds hints when a retry is worthwhile (0 = no hint).
	RetryAfterSeconds int `json:"retry_after_seconds,omitempty"`
}

// Strategy builds a fallback response for a failure. Strategies describe the
// degraded state; they must never fabricate flight data.
type Strategy func(err error, criteria flight.Criteria) *Fallback

// Matcher reports whether a strategy applies to the given error.
type Matcher func(error) bool

type handlerEntry struct {
	matches  Matcher
	strategy Strategy
}

// Dispatcher routes failures to registered fallback strategies.
type Dispatcher struct {
	handlers []handlerEntry
	logger   zerolog.Logger
}

// NewDispatcher creates an empty dispatcher. Register strategies most
// specific first; Handle picks the first match in registration order.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		logger: log.With().Str("component", "degradation").Logger(),
	}
}

// Register adds a strategy for errors matched by the given matcher.
func (d *Dispatcher) Register(matches Matcher, strategy Strategy) {
	if matches == nil || strategy == nil {
		panic("matcher and strategy cannot be nil")
	}
	d.handlers = append(d.handlers, handlerEntry{matches: matches, strategy: strategy})
}

// RegisterIs adds a strategy for errors matching target under errors.Is.
func (d *Dispatcher) RegisterIs(target error, strategy Strategy) {
	if target == nil {
		panic("target cannot be nil")
	}
	d.Register(func(err error) bool { return errors.Is(err, target) }, strategy)
}

// Handle looks up the first registered strategy matching err and returns its
// fallback. When no strategy matches, the error is returned unchanged so the
// failure stays visible instead of being silently degraded.
func (d *Dispatcher) Handle(err error, criteria flight.Criteria) (*Fallback, error) {
	for _, h := range d.handlers {
		if !h.matches(err) {
			continue
		}
		d.logger.Info().
			Err(err).
			Str("origin", criteria.Origin).
			Str("destination", criteria.Destination).
			Msg("Handling failure with fallback strategy")
		return h.strategy(err, criteria), nil
	}

	d.logger.Error().Err(err).Msg("No fallback strategy registered")
	return nil, err
}

// ServiceUnavailableStrategy answers for a tripped circuit breaker or an
// upstream judged unhealthy: retry later, nothing to show now.
func ServiceUnavailableStrategy(err error, criteria flight.Criteria) *Fallback {
	log.Warn().Err(err).Msg("Graceful degradation: service unavailable")
	return &Fallback{
		Message:           "Service temporarily unavailable. Please try again later.",
		Status:            StatusDegraded,
		Criteria:          criteria,
		RetryAfterSeconds: 60,
	}
}

// UpstreamFailureStrategy answers for a transient upstream failure that was
// not (or not yet) converted into an open circuit.
func UpstreamFailureStrategy(err error, criteria flight.Criteria) *Fallback {
	log.Warn().Err(err).Msg("Graceful degradation: upstream failure")
	return &Fallback{
		Message:           "Flight search could not be completed. Please try again.",
		Status:            StatusDegraded,
		Criteria:          criteria,
		RetryAfterSeconds: 30,
	}
}
