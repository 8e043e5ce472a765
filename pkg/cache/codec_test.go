package cache

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripcache/flight-search/pkg/flight"
)

func testLeg(date time.Time, departure, landing, price string, dur time.Duration) flight.Leg {
	return flight.Leg{
		Date:      date,
		Departure: departure,
		Landing:   landing,
		Price:     decimal.RequireFromString(price),
		Duration:  dur,
	}
}

func testResultSet(t *testing.T) *flight.ResultSet {
	t.Helper()
	criteria := roundTrip()
	out1 := testLeg(criteria.Departure, "08:30", "09:45", "250.5", 75*time.Minute)
	out2 := testLeg(criteria.Departure, "14:00", "15:10", "199.99", 70*time.Minute)
	ret1 := testLeg(criteria.Return, "10:00", "11:15", "200.25", 75*time.Minute)
	ret2 := testLeg(criteria.Return, "18:30", "19:40", "180.75", 70*time.Minute)

	return flight.NewResultSet(criteria, []flight.Itinerary{
		{Outbound: out1, Returns: []flight.Leg{ret1, ret2}},
		{Outbound: out2, Returns: []flight.Leg{ret1}},
	})
}

func TestFlatten_OneRowPerReturnCandidate(t *testing.T) {
	rs := testResultSet(t)

	rows := Flatten(rs)
	require.Len(t, rows, 3, "2 returns + 1 return should yield 3 rows")

	// Rows for the same itinerary repeat its outbound leg.
	assert.Equal(t, rows[0].Outbound, rows[1].Outbound)
	assert.NotEqual(t, rows[0].Outbound, rows[2].Outbound)
	require.NotNil(t, rows[0].Return)
	require.NotNil(t, rows[1].Return)
	assert.Equal(t, "200.25", rows[0].Return.Price)
	assert.Equal(t, "180.75", rows[1].Return.Price)
}

func TestFlatten_OneWay(t *testing.T) {
	criteria := roundTrip()
	criteria.Return = time.Time{}
	rs := flight.NewResultSet(criteria, []flight.Itinerary{
		{Outbound: testLeg(criteria.Departure, "08:30", "09:45", "250.5", 75*time.Minute)},
	})

	rows := Flatten(rs)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].Return, "one-way rows carry no return leg")
	assert.Equal(t, int64(4500), rows[0].Outbound.DurationSeconds)
}

func TestFlatten_Nil(t *testing.T) {
	assert.Nil(t, Flatten(nil))
}

func TestUnflatten_RoundTrip(t *testing.T) {
	rs := testResultSet(t)

	got, err := Unflatten(rs.Criteria, Flatten(rs))
	require.NoError(t, err)
	assert.True(t, got.Equal(rs), "round trip should preserve the result set")

	// And the rows themselves survive a second pass unchanged.
	assert.Equal(t, Flatten(rs), Flatten(got))
}

func TestUnflatten_GroupsByOutboundInOrder(t *testing.T) {
	rs := testResultSet(t)
	rows := Flatten(rs)

	got, err := Unflatten(rs.Criteria, rows)
	require.NoError(t, err)
	require.Len(t, got.Itineraries, 2)
	assert.Equal(t, "08:30", got.Itineraries[0].Outbound.Departure)
	assert.Equal(t, "14:00", got.Itineraries[1].Outbound.Departure)
	require.Len(t, got.Itineraries[0].Returns, 2)
	assert.Equal(t, "10:00", got.Itineraries[0].Returns[0].Departure)
	assert.Equal(t, "18:30", got.Itineraries[0].Returns[1].Departure)
}

func TestUnflatten_Empty(t *testing.T) {
	got, err := Unflatten(roundTrip(), nil)
	require.NoError(t, err)
	assert.True(t, got.Empty())
	assert.NoError(t, got.Criteria.Validate())
}

func TestUnflatten_RejectsMalformedRows(t *testing.T) {
	rows := []Row{{Outbound: LegRecord{Date: "not-a-date", Price: "250.5"}}}
	_, err := Unflatten(roundTrip(), rows)
	assert.Error(t, err)

	rows = []Row{{Outbound: LegRecord{Date: "2025-05-15", Price: "not-a-price"}}}
	_, err = Unflatten(roundTrip(), rows)
	assert.Error(t, err)
}

func TestCodec_PricePrecision(t *testing.T) {
	criteria := roundTrip()
	// Values that lose precision as binary floats.
	leg := testLeg(criteria.Departure, "08:30", "09:45", "1999999.99", 75*time.Minute)
	rs := flight.NewResultSet(criteria, []flight.Itinerary{{Outbound: leg}})

	got, err := Unflatten(criteria, Flatten(rs))
	require.NoError(t, err)
	require.Len(t, got.Itineraries, 1)
	assert.True(t, leg.Price.Equal(got.Itineraries[0].Outbound.Price),
		"price should survive the round trip exactly")
	assert.Equal(t, "1999999.99", got.Itineraries[0].Outbound.Price.String())
}
