// Package flight defines the domain model for itinerary search:
// search criteria, flight legs, itineraries and result sets.
package flight

import (
	"errors"
	"fmt"
	"time"
)

// DefaultCurrency is applied when the caller does not specify one.
const DefaultCurrency = "COP"

// ErrInvalidCriteria is returned when search criteria fail validation.
// It signals a caller programming error, not an upstream or cache condition.
var ErrInvalidCriteria = errors.New("invalid search criteria")

// Criteria describes one flight search. Origin, Destination, Departure,
// Return, Passengers and Currency form the cache identity of the search;
// baggage counts are request metadata and do not affect caching.
type Criteria struct {
	// Origin is the departure airport IATA code (e.g. "BOG").
	Origin string

	// Destination is the arrival airport IATA code (e.g. "MDE").
	Destination string

	// Departure is the outbound travel date.
	Departure time.Time

	// Return is the return travel date. The zero value means one-way.
	Return time.Time

	// Passengers is the number of travelers (at least 1).
	Passengers int

	// CheckedBags and CarryOnBags are optional baggage counts.
	CheckedBags int
	CarryOnBags int

	// Currency is the ISO 4217 code prices are quoted in.
	// Empty defaults to DefaultCurrency.
	Currency string
}

// Normalized returns a copy with defaults applied: at least one passenger
// and the default currency when none is set.
func (c Criteria) Normalized() Criteria {
	if c.Passengers == 0 {
		c.Passengers = 1
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	return c
}

// OneWay reports whether the search has no return date.
func (c Criteria) OneWay() bool {
	return c.Return.IsZero()
}

// Validate checks that the criteria are usable for a search.
// Violations are programming errors on the caller's side; they are never
// converted into degraded responses.
func (c Criteria) Validate() error {
	if c.Origin == "" {
		return fmt.Errorf("%w: origin is required", ErrInvalidCriteria)
	}
	if c.Destination == "" {
		return fmt.Errorf("%w: destination is required", ErrInvalidCriteria)
	}
	if c.Origin == c.Destination {
		return fmt.Errorf("%w: origin and destination must differ", ErrInvalidCriteria)
	}
	if c.Departure.IsZero() {
		return fmt.Errorf("%w: departure date is required", ErrInvalidCriteria)
	}
	if !c.Return.IsZero() && c.Return.Before(c.Departure) {
		return fmt.Errorf("%w: return date %s is before departure %s",
			ErrInvalidCriteria, c.Return.Format(DateFormat), c.Departure.Format(DateFormat))
	}
	if c.Passengers < 1 {
		return fmt.Errorf("%w: passengers must be at least 1 (got %d)", ErrInvalidCriteria, c.Passengers)
	}
	return nil
}
