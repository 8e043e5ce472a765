package degrade

import (
	"errors"
	"testing"
	"time"

	"github.com/tripcache/flight-search/pkg/breaker"
	"github.com/tripcache/flight-search/pkg/flight"
)

func testCriteria() flight.Criteria {
	return flight.Criteria{
		Origin:      "BOG",
		Destination: "MDE",
		Departure:   flight.Date(2025, time.May, 15),
		Passengers:  2,
	}
}

func TestDispatcher_Handle_Match(t *testing.T) {
	d := NewDispatcher()
	d.Register(
		func(err error) bool { return errors.Is(err, breaker.ErrServiceUnavailable) },
		ServiceUnavailableStrategy,
	)

	criteria := testCriteria()
	fb, err := d.Handle(breaker.ErrServiceUnavailable, criteria)
	if err != nil {
		t.Fatalf("Handle() error = %v, want nil", err)
	}
	if fb.Status != StatusDegraded {
		t.Errorf("Status = %q, want %q", fb.Status, StatusDegraded)
	}
	if fb.Message == "" {
		t.Error("fallback should carry a caller-facing message")
	}
	if fb.Criteria != criteria {
		t.Errorf("Criteria = %+v, want the failed search echoed back", fb.Criteria)
	}
	if fb.RetryAfterSeconds != 60 {
		t.Errorf("RetryAfterSeconds = %d, want 60", fb.RetryAfterSeconds)
	}
}

func TestDispatcher_Handle_FirstMatchWins(t *testing.T) {
	target := errors.New("boom")

	d := NewDispatcher()
	d.Register(
		func(err error) bool { return errors.Is(err, target) },
		func(err error, criteria flight.Criteria) *Fallback {
			return &Fallback{Message: "specific", Status: StatusDegraded, Criteria: criteria}
		},
	)
	d.Register(
		func(error) bool { return true },
		func(err error, criteria flight.Criteria) *Fallback {
			return &Fallback{Message: "catch-all", Status: StatusDegraded, Criteria: criteria}
		},
	)

	fb, err := d.Handle(target, testCriteria())
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if fb.Message != "specific" {
		t.Errorf("Message = %q, want the first registered match", fb.Message)
	}
}

func TestDispatcher_Handle_UnmatchedErrorIsReturned(t *testing.T) {
	d := NewDispatcher()
	d.Register(
		func(err error) bool { return errors.Is(err, breaker.ErrServiceUnavailable) },
		ServiceUnavailableStrategy,
	)

	unmatched := errors.New("something else entirely")
	fb, err := d.Handle(unmatched, testCriteria())
	if fb != nil {
		t.Errorf("Handle() fallback = %+v, want nil for unmatched errors", fb)
	}
	if !errors.Is(err, unmatched) {
		t.Errorf("Handle() error = %v, want the original error back", err)
	}
}

func TestDispatcher_RegisterIs_MatchesWrappedErrors(t *testing.T) {
	d := NewDispatcher()
	d.RegisterIs(breaker.ErrServiceUnavailable, ServiceUnavailableStrategy)

	wrapped := errors.Join(errors.New("context"), breaker.ErrServiceUnavailable)
	if _, err := d.Handle(wrapped, testCriteria()); err != nil {
		t.Errorf("Handle() error = %v, wrapped sentinel should still match", err)
	}
}

func TestDispatcher_Register_NilPanics(t *testing.T) {
	d := NewDispatcher()

	defer func() {
		if recover() == nil {
			t.Error("Register(nil, nil) should panic")
		}
	}()
	d.Register(nil, nil)
}

func TestUpstreamFailureStrategy(t *testing.T) {
	criteria := testCriteria()
	fb := UpstreamFailureStrategy(errors.New("timeout"), criteria)
	if fb.Status != StatusDegraded {
		t.Errorf("Status = %q, want %q", fb.Status, StatusDegraded)
	}
	if fb.RetryAfterSeconds != 30 {
		t.Errorf("RetryAfterSeconds = %d, want 30", fb.RetryAfterSeconds)
	}
	if fb.Criteria != criteria {
		t.Errorf("Criteria = %+v, want echoed criteria", fb.Criteria)
	}
}
