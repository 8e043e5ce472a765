package flight

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func leg(price string) Leg {
	return Leg{
		Date:      Date(2025, time.May, 15),
		Departure: "08:30",
		Landing:   "09:45",
		Price:     decimal.RequireFromString(price),
		Duration:  75 * time.Minute,
	}
}

func TestLeg_Equal(t *testing.T) {
	a := leg("250.00")
	b := leg("250.00")
	if !a.Equal(b) {
		t.Error("identical legs should be equal")
	}

	// Numeric equality, not string equality: 250.00 == 250.
	b.Price = decimal.RequireFromString("250")
	if !a.Equal(b) {
		t.Error("legs with numerically equal prices should be equal")
	}

	b = leg("250.01")
	if a.Equal(b) {
		t.Error("legs with different prices should not be equal")
	}

	b = leg("250.00")
	b.Departure = "09:00"
	if a.Equal(b) {
		t.Error("legs with different departure times should not be equal")
	}
}

func TestItinerary_Equal(t *testing.T) {
	a := Itinerary{Outbound: leg("250.00"), Returns: []Leg{leg("200.00"), leg("180.50")}}
	b := Itinerary{Outbound: leg("250.00"), Returns: []Leg{leg("200.00"), leg("180.50")}}
	if !a.Equal(b) {
		t.Error("identical itineraries should be equal")
	}

	b.Returns = b.Returns[:1]
	if a.Equal(b) {
		t.Error("itineraries with different return counts should not be equal")
	}
}

func TestItinerary_OneWay(t *testing.T) {
	it := Itinerary{Outbound: leg("250.00")}
	if !it.OneWay() {
		t.Error("itinerary without returns should be one-way")
	}
	it.Returns = []Leg{leg("200.00")}
	if it.OneWay() {
		t.Error("itinerary with returns should not be one-way")
	}
}

func TestResultSet_Equal_IgnoresID(t *testing.T) {
	criteria := Criteria{Origin: "BOG", Destination: "MDE", Departure: Date(2025, time.May, 15)}
	its := []Itinerary{{Outbound: leg("250.00"), Returns: []Leg{leg("200.00")}}}

	a := NewResultSet(criteria, its)
	b := NewResultSet(criteria, its)
	if a.ID == b.ID {
		t.Fatal("result sets should get distinct IDs")
	}
	if !a.Equal(b) {
		t.Error("result sets with equal content should be equal regardless of ID")
	}
}

func TestResultSet_Empty(t *testing.T) {
	criteria := Criteria{Origin: "BOG", Destination: "MDE", Departure: Date(2025, time.May, 15)}
	if !NewResultSet(criteria, nil).Empty() {
		t.Error("result set without itineraries should be empty")
	}
	rs := NewResultSet(criteria, []Itinerary{{Outbound: leg("250.00")}})
	if rs.Empty() {
		t.Error("result set with itineraries should not be empty")
	}
}
