package cache

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tripcache/flight-search/pkg/flight"
)

// LegRecord is the row-oriented encoding of one flight leg. All fields are
// strings or integers so that the encoding is exact: prices travel as
// decimal strings, never binary floats, and durations as whole seconds.
type LegRecord struct {
	Date            string `json:"date"`
	Departure       string `json:"departure_time"`
	Landing         string `json:"landing_time"`
	Price           string `json:"price"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// Row pairs the outbound leg of an itinerary with one of its return
// candidates. A one-way itinerary produces a single Row with a nil Return.
type Row struct {
	Outbound LegRecord  `json:"outbound"`
	Return   *LegRecord `json:"return,omitempty"`
}

// Flatten converts a result set into storage rows. An itinerary with N
// return candidates yields N rows sharing the same outbound leg; this
// denormalization keeps storage row-oriented.
func Flatten(rs *flight.ResultSet) []Row {
	if rs == nil {
		return nil
	}
	var rows []Row
	for _, it := range rs.Itineraries {
		rows = append(rows, flattenItinerary(it)...)
	}
	return rows
}

// Unflatten rebuilds a result set from storage rows, grouping rows by
// outbound-leg identity. Return candidates keep the order the rows were
// supplied in. An empty row sequence yields a result set with zero
// itineraries, not an error.
func Unflatten(criteria flight.Criteria, rows []Row) (*flight.ResultSet, error) {
	var order []LegRecord
	grouped := make(map[LegRecord][]flight.Leg)

	for _, row := range rows {
		if _, seen := grouped[row.Outbound]; !seen {
			order = append(order, row.Outbound)
			grouped[row.Outbound] = nil
		}
		if row.Return != nil {
			leg, err := decodeLeg(*row.Return)
			if err != nil {
				return nil, fmt.Errorf("decode return leg: %w", err)
			}
			grouped[row.Outbound] = append(grouped[row.Outbound], leg)
		}
	}

	itineraries := make([]flight.Itinerary, 0, len(order))
	for _, ob := range order {
		leg, err := decodeLeg(ob)
		if err != nil {
			return nil, fmt.Errorf("decode outbound leg: %w", err)
		}
		itineraries = append(itineraries, flight.Itinerary{
			Outbound: leg,
			Returns:  grouped[ob],
		})
	}

	return flight.NewResultSet(criteria, itineraries), nil
}

// flattenItinerary emits the rows for a single itinerary.
func flattenItinerary(it flight.Itinerary) []Row {
	outbound := encodeLeg(it.Outbound)
	if it.OneWay() {
		return []Row{{Outbound: outbound}}
	}
	rows := make([]Row, 0, len(it.Returns))
	for _, ret := range it.Returns {
		record := encodeLeg(ret)
		rows = append(rows, Row{Outbound: outbound, Return: &record})
	}
	return rows
}

func encodeLeg(l flight.Leg) LegRecord {
	return LegRecord{
		Date:            l.Date.Format(flight.DateFormat),
		Departure:       l.Departure,
		Landing:         l.Landing,
		Price:           l.Price.String(),
		DurationSeconds: int64(l.Duration / time.Second),
	}
}

func decodeLeg(r LegRecord) (flight.Leg, error) {
	date, err := time.Parse(flight.DateFormat, r.Date)
	if err != nil {
		return flight.Leg{}, fmt.Errorf("parse leg date %q: %w", r.Date, err)
	}
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return flight.Leg{}, fmt.Errorf("parse leg price %q: %w", r.Price, err)
	}
	return flight.Leg{
		Date:      date,
		Departure: r.Departure,
		Landing:   r.Landing,
		Price:     price,
		Duration:  time.Duration(r.DurationSeconds) * time.Second,
	}, nil
}
