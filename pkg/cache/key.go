package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/tripcache/flight-search/pkg/flight"
)

// keySeparator joins identity fields before hashing. An explicit separator
// keeps ("AB","C") and ("A","BC") from hashing to the same digest.
const keySeparator = "|"

// Key derives the deterministic cache key for search criteria.
//
// The identity-bearing fields (origin, destination, departure, return,
// passengers, currency) are joined with keySeparator and digested with
// SHA-256; the result is a fixed-length 64-character hex string. Baggage
// counts are request metadata and never affect the key.
//
// Currency is part of the identity: prices are quoted in it, and excluding
// it would serve stale amounts in the wrong currency after a switch.
func Key(c flight.Criteria) string {
	c = c.Normalized()

	returnDate := ""
	if !c.Return.IsZero() {
		returnDate = c.Return.Format(flight.DateFormat)
	}

	fields := []string{
		c.Origin,
		c.Destination,
		c.Departure.Format(flight.DateFormat),
		returnDate,
		strconv.Itoa(c.Passengers),
		c.Currency,
	}

	sum := sha256.Sum256([]byte(strings.Join(fields, keySeparator) + keySeparator))
	return hex.EncodeToString(sum[:])
}
