package upstream

import (
	"context"
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// Kind classifies upstream failures. Network, timeout and server failures
// are recoverable: they reflect upstream health and count toward the circuit
// breaker. Client and malformed failures are caller or contract errors and
// are never counted or degraded silently.
type Kind string

const (
	// KindNetwork represents connection-level failures.
	KindNetwork Kind = "network"

	// KindTimeout represents a request that exceeded its deadline.
	KindTimeout Kind = "timeout"

	// KindServer represents 5xx upstream responses.
	KindServer Kind = "server"

	// KindClient represents 4xx responses (malformed request).
	KindClient Kind = "client"

	// KindMalformed represents an upstream response that could not be decoded.
	KindMalformed Kind = "malformed"
)

// Error is an upstream failure with classification context.
type Error struct {
	StatusCode int
	Kind       Kind
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error (status %d): %s: %v",
			e.Kind, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s error (status %d): %s",
		e.Kind, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRecoverable reports whether err belongs to the recoverable failure
// category (network, timeout, 5xx). This is the protected set for the
// circuit breaker: anything else must not open the circuit.
func IsRecoverable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *Error
	if !errors.As(err, &ue) {
		return false
	}
	switch ue.Kind {
	case KindNetwork, KindTimeout, KindServer:
		return true
	default:
		return false
	}
}

// shouldRetry determines if an error kind is worth retrying before the
// failure surfaces to the breaker.
func shouldRetry(kind Kind) bool {
	switch kind {
	case KindClient, KindMalformed:
		// Caller or contract errors never succeed on retry.
		return false
	case KindServer, KindNetwork, KindTimeout:
		return true
	default:
		return false
	}
}
