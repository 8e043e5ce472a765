package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tripcache/flight-search/pkg/flight"
)

var (
	// ErrMiss indicates the criteria have no unexpired cached results.
	// A miss is a normal control-flow outcome, distinct from storage errors.
	ErrMiss = errors.New("cache miss")

	// ErrInvalidRecord indicates a cached record could not be decoded.
	ErrInvalidRecord = errors.New("invalid cache record")
)

const (
	// DefaultTTL is how long positive results stay cached. Empty result
	// sets are never written, so a fruitless search is retried every request.
	DefaultTTL = 30 * time.Minute

	// recentSearchesKey holds the capped history of stored search hashes.
	recentSearchesKey = "flights:recent_searches"
	recentSearchesCap = 100

	scanBatchSize = 1000
)

// Store persists flattened search results in Redis with per-row TTL.
type Store struct {
	redis *redis.Client
}

// NewStore creates a result store backed by the given Redis client.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Store{redis: redisClient}
}

// Get retrieves the cached result set for the criteria.
// Returns ErrMiss when nothing (or only expired rows) is stored; any other
// error means the store itself failed and must not be conflated with a miss.
func (s *Store) Get(ctx context.Context, criteria flight.Criteria) (*flight.ResultSet, error) {
	hash := Key(criteria)

	keys, err := s.scanRowKeys(ctx, hash)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		CacheMisses.Inc()
		return nil, ErrMiss
	}
	sortRowKeys(keys)

	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	rows := make([]Row, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			// Row evicted between SCAN and MGET; the set is incomplete.
			CacheMisses.Inc()
			return nil, ErrMiss
		}
		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			CacheErrors.WithLabelValues("get").Inc()
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		if rec.isExpired() {
			_ = s.deleteKeys(ctx, keys)
			CacheMisses.Inc()
			return nil, ErrMiss
		}
		rows = append(rows, rec.Row)
	}

	rs, err := Unflatten(criteria, rows)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	CacheHits.WithLabelValues("redis").Inc()
	return rs, nil
}

// Put stores the result set, one record per flattened row, all sharing the
// given TTL. Existing records under the same key are replaced outright
// (last-writer-wins). Empty result sets are intentionally not cached.
func (s *Store) Put(ctx context.Context, rs *flight.ResultSet, ttl time.Duration) error {
	if rs == nil {
		return fmt.Errorf("result set cannot be nil")
	}
	if rs.Empty() {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	hash := Key(rs.Criteria)

	stale, err := s.scanRowKeys(ctx, hash)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis scan: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(ttl)

	pipe := s.redis.TxPipeline()
	if len(stale) > 0 {
		pipe.Del(ctx, stale...)
	}
	for i, it := range rs.Itineraries {
		for j, row := range flattenItinerary(it) {
			data, err := json.Marshal(record{Row: row, CachedAt: now, ExpiresAt: expiresAt})
			if err != nil {
				CacheErrors.WithLabelValues("set").Inc()
				return fmt.Errorf("marshal cache record: %w", err)
			}
			pipe.Set(ctx, rowKey(hash, i, j), data, ttl)
		}
	}
	pipe.LPush(ctx, recentSearchesKey, hash)
	pipe.LTrim(ctx, recentSearchesKey, 0, recentSearchesCap-1)

	if _, err := pipe.Exec(ctx); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Delete removes every cached row for the criteria.
func (s *Store) Delete(ctx context.Context, criteria flight.Criteria) error {
	keys, err := s.scanRowKeys(ctx, Key(criteria))
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis scan: %w", err)
	}
	return s.deleteKeys(ctx, keys)
}

// RecentSearches returns up to n most recently stored search hashes.
func (s *Store) RecentSearches(ctx context.Context, n int64) ([]string, error) {
	hashes, err := s.redis.LRange(ctx, recentSearchesKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	return hashes, nil
}

func (s *Store) scanRowKeys(ctx context.Context, hash string) ([]string, error) {
	var keys []string
	iter := s.redis.Scan(ctx, 0, hash+":*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) deleteKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// rowKey addresses one flattened row: {criteriaHash}:{itinerary}:{row}.
// The hash is hex, so the colon delimiter cannot collide with it.
func rowKey(hash string, itinerary, row int) string {
	return fmt.Sprintf("%s:%d:%d", hash, itinerary, row)
}

// sortRowKeys orders keys by (itinerary, row) index so reconstruction sees
// rows in the order they were written; SCAN returns them unordered.
func sortRowKeys(keys []string) {
	sort.Slice(keys, func(a, b int) bool {
		ia, ja := rowIndexes(keys[a])
		ib, jb := rowIndexes(keys[b])
		if ia != ib {
			return ia < ib
		}
		return ja < jb
	})
}

func rowIndexes(key string) (int, int) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 {
		return 0, 0
	}
	i, _ := strconv.Atoi(parts[1])
	j, _ := strconv.Atoi(parts[2])
	return i, j
}
