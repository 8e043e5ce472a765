package cache

import "time"

// record is the stored envelope for one flattened row. The expiry timestamp
// travels with the row so that staleness is detectable even when the backing
// store does not evict precisely on TTL.
type record struct {
	Row       Row       `json:"row"`
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// isExpired reports whether the record is past its expiry.
func (r *record) isExpired() bool {
	return time.Now().After(r.ExpiresAt)
}
