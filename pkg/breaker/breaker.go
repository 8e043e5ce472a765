// Package breaker implements a circuit breaker that protects calls to an
// unreliable upstream dependency. After a threshold of protected failures
// the circuit opens and calls fail fast until a recovery delay has elapsed;
// the next call after the delay probes the upstream and, on success, normal
// operation resumes.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for breaker state transitions.
var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flights_breaker_state",
		Help: "Current circuit breaker state (0 = closed, 1 = open)",
	}, []string{"breaker"})

	breakerTripsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flights_breaker_trips_total",
		Help: "Total number of times the circuit breaker opened",
	}, []string{"breaker"})

	breakerFastFailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flights_breaker_fast_fails_total",
		Help: "Total number of calls rejected while the circuit was open",
	}, []string{"breaker"})
)

// State is the circuit state.
type State string

const (
	// StateClosed is normal operation; calls pass through.
	StateClosed State = "closed"

	// StateOpen rejects calls without invoking the upstream.
	StateOpen State = "open"
)

// ErrServiceUnavailable signals that the circuit is open (or has just
// tripped) and the upstream was not, or will no longer be, invoked.
var ErrServiceUnavailable = errors.New("service unavailable: circuit open")

// UnrecognizedFailureError wraps an error outside the protected set.
// Such failures never affect breaker state: the breaker must not open due
// to errors unrelated to upstream health.
type UnrecognizedFailureError struct {
	Err error
}

func (e *UnrecognizedFailureError) Error() string {
	return fmt.Sprintf("unrecognized failure: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UnrecognizedFailureError) Unwrap() error {
	return e.Err
}

// Config holds the breaker configuration.
type Config struct {
	// Name identifies the protected dependency in logs and metrics.
	Name string

	// FailureThreshold is the number of consecutive protected failures
	// that opens the circuit. Must be positive.
	FailureThreshold int

	// RecoveryDelay is how long the circuit stays open before the next
	// call is allowed through as a recovery probe. Must be positive.
	RecoveryDelay time.Duration

	// Protected reports whether an error counts toward opening the
	// circuit. Nil protects every error.
	Protected func(error) bool

	// ResetOnSuccess clears the failure counter on every successful call
	// while closed. The default (false) only resets on a successful
	// recovery probe, the stricter policy.
	ResetOnSuccess bool
}

// Breaker is a circuit breaker for one upstream dependency. All state
// transitions are serialized under a single mutex; the protected call itself
// runs outside the lock.
type Breaker struct {
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
}

// New creates a circuit breaker. FailureThreshold and RecoveryDelay must be
// positive.
func New(cfg Config) (*Breaker, error) {
	if cfg.FailureThreshold <= 0 {
		return nil, fmt.Errorf("failure threshold must be positive (got %d)", cfg.FailureThreshold)
	}
	if cfg.RecoveryDelay <= 0 {
		return nil, fmt.Errorf("recovery delay must be positive (got %s)", cfg.RecoveryDelay)
	}
	if cfg.Name == "" {
		cfg.Name = "upstream"
	}
	if cfg.Protected == nil {
		cfg.Protected = func(error) bool { return true }
	}

	b := &Breaker{
		cfg:    cfg,
		logger: log.With().Str("component", "breaker").Str("breaker", cfg.Name).Logger(),
		now:    time.Now,
		state:  StateClosed,
	}
	breakerState.WithLabelValues(cfg.Name).Set(0)
	return b, nil
}

// Execute runs call under circuit protection.
//
// With the circuit open and the recovery delay not yet elapsed, Execute
// returns ErrServiceUnavailable without invoking call. Once the delay has
// elapsed, the circuit closes, the counter resets, and the call proceeds as
// a recovery probe. While closed, a protected failure increments the
// counter; reaching the threshold opens the circuit and ErrServiceUnavailable
// replaces the original error, otherwise the original error is returned so
// callers can still distinguish transient failures from a tripped breaker.
// Failures outside the protected set are wrapped in UnrecognizedFailureError
// and leave breaker state untouched.
func (b *Breaker) Execute(ctx context.Context, call func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := call(ctx)
	if err == nil {
		b.recordSuccess()
		return nil
	}
	return b.recordFailure(err)
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// allow decides whether a call may proceed, handling the open-state
// recovery transition.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}

	elapsed := b.now().Sub(b.lastFailure)
	if elapsed < b.cfg.RecoveryDelay {
		breakerFastFailsTotal.WithLabelValues(b.cfg.Name).Inc()
		b.logger.Warn().
			Dur("elapsed", elapsed).
			Dur("recovery_delay", b.cfg.RecoveryDelay).
			Msg("Circuit open, failing fast")
		return ErrServiceUnavailable
	}

	// Recovery window elapsed: close the circuit and let this call probe
	// the upstream.
	b.state = StateClosed
	b.failures = 0
	breakerState.WithLabelValues(b.cfg.Name).Set(0)
	b.logger.Info().
		Dur("elapsed", elapsed).
		Msg("Circuit closed, probing upstream")
	return nil
}

func (b *Breaker) recordSuccess() {
	if !b.cfg.ResetOnSuccess {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

func (b *Breaker) recordFailure(err error) error {
	if !b.cfg.Protected(err) {
		b.logger.Warn().Err(err).Msg("Unrecognized failure, breaker state unchanged")
		return &UnrecognizedFailureError{Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()

	if b.state == StateOpen {
		// A concurrent caller already tripped the circuit.
		return ErrServiceUnavailable
	}

	if b.failures >= b.cfg.FailureThreshold {
		b.state = StateOpen
		breakerState.WithLabelValues(b.cfg.Name).Set(1)
		breakerTripsTotal.WithLabelValues(b.cfg.Name).Inc()
		b.logger.Warn().
			Int("failures", b.failures).
			Int("threshold", b.cfg.FailureThreshold).
			Msg("Circuit opened")
		return fmt.Errorf("%w: failure threshold %d reached", ErrServiceUnavailable, b.cfg.FailureThreshold)
	}

	b.logger.Warn().
		Err(err).
		Int("failures", b.failures).
		Int("threshold", b.cfg.FailureThreshold).
		Msg("Protected call failed")
	return err
}
