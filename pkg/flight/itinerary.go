package flight

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Formats used when legs cross a process boundary (cache rows, upstream wire).
const (
	// DateFormat is the calendar-date layout for leg and criteria dates.
	DateFormat = "2006-01-02"

	// ClockFormat is the wall-clock layout for departure and landing times.
	ClockFormat = "15:04"
)

// Date builds a calendar date in UTC. Legs and criteria carry dates at
// UTC midnight so that structural comparison is location-independent.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Leg is one flight segment. Legs are value types and are never mutated
// after creation.
type Leg struct {
	// Date is the calendar date of the flight (UTC midnight).
	Date time.Time

	// Departure and Landing are wall-clock times in ClockFormat ("15:04").
	Departure string
	Landing   string

	// Price is a fixed-point amount in the search currency.
	// Never a binary float; rounding drift is not acceptable for fares.
	Price decimal.Decimal

	// Duration is the total flight time.
	Duration time.Duration
}

// Equal reports structural equality. Prices compare numerically so that
// representation differences (250 vs 250.00) do not break identity.
func (l Leg) Equal(other Leg) bool {
	return l.Date.Equal(other.Date) &&
		l.Departure == other.Departure &&
		l.Landing == other.Landing &&
		l.Price.Equal(other.Price) &&
		l.Duration == other.Duration
}

// Itinerary pairs one outbound leg with zero or more candidate return legs.
// An empty Returns slice denotes a one-way itinerary.
type Itinerary struct {
	Outbound Leg
	Returns  []Leg
}

// OneWay reports whether the itinerary has no return candidates.
func (i Itinerary) OneWay() bool {
	return len(i.Returns) == 0
}

// Equal reports structural equality including return-candidate order.
func (i Itinerary) Equal(other Itinerary) bool {
	if !i.Outbound.Equal(other.Outbound) {
		return false
	}
	if len(i.Returns) != len(other.Returns) {
		return false
	}
	for n, r := range i.Returns {
		if !r.Equal(other.Returns[n]) {
			return false
		}
	}
	return true
}

// ResultSet is the outcome of one search: the criteria that produced it and
// an ordered sequence of itineraries. A ResultSet is owned by the search
// invocation that created it and is never mutated afterwards.
type ResultSet struct {
	ID          uuid.UUID
	Criteria    Criteria
	Itineraries []Itinerary
}

// NewResultSet builds a ResultSet with a fresh ID.
func NewResultSet(criteria Criteria, itineraries []Itinerary) *ResultSet {
	return &ResultSet{
		ID:          uuid.New(),
		Criteria:    criteria,
		Itineraries: itineraries,
	}
}

// Empty reports whether the search produced no itineraries.
func (r *ResultSet) Empty() bool {
	return len(r.Itineraries) == 0
}

// Equal compares itinerary content and order. IDs are excluded: a set
// reconstructed from cache is itinerary-equal to the set that was stored.
func (r *ResultSet) Equal(other *ResultSet) bool {
	if r == nil || other == nil {
		return r == other
	}
	if len(r.Itineraries) != len(other.Itineraries) {
		return false
	}
	for n, it := range r.Itineraries {
		if !it.Equal(other.Itineraries[n]) {
			return false
		}
	}
	return true
}
