// Package cache stores flight search results in Redis, keyed by a
// deterministic digest of the search criteria.
//
// The package has three cooperating parts:
//
//   - Key derives a SHA-256 digest from the identity-bearing criteria fields
//     (origin, destination, departure, return, passengers, currency), joined
//     with an unambiguous delimiter before hashing.
//   - Flatten/Unflatten convert between the nested itinerary tree and
//     row-oriented records: one row per outbound/return pairing, prices as
//     decimal strings so the round trip is exact.
//   - Store writes one Redis entry per row under {hash}:{itinerary}:{row}
//     with a shared TTL, and reconstructs the full result set from a single
//     prefix scan on read.
//
// # Basic Usage
//
//	redisClient, err := cache.Connect(ctx, "redis://localhost:6379")
//	if err != nil {
//		return err
//	}
//
//	store := cache.NewStore(redisClient)
//
//	rs, err := store.Get(ctx, criteria)
//	if errors.Is(err, cache.ErrMiss) {
//		// Nothing cached - ask the upstream.
//	}
//
//	// After a successful upstream search:
//	if err := store.Put(ctx, rs, cache.DefaultTTL); err != nil {
//		// Log and continue; a failed write must not fail the search.
//	}
//
// # Expiry
//
// Rows are written with a Redis TTL and additionally carry their expiry
// timestamp in the stored envelope; an expired envelope read back is treated
// as a miss and the stale rows are deleted. Empty result sets are never
// written, so searches that found nothing are retried on every request.
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - flights_cache_hits_total{layer="redis"} - Cache hits
//   - flights_cache_misses_total - Cache misses
//   - flights_cache_errors_total{operation} - Cache operation errors
package cache
