package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/standardbeagle/mydocs/internal/errors"
	"github.com/standardbeagle/mydocs/internal/types"
)

// GetCachedResults returns the unexpired cache row for a query hash, or nil
// on a miss. A hit increments the row's hit counter.
func (s *Store) GetCachedResults(ctx context.Context, queryHash string) (*types.QueryCacheEntry, error) {
	row := s.queryRow(ctx, "cache_get",
		`SELECT id, query_hash, query_text, results_json, created_at, expires_at, hit_count
		 FROM search_cache WHERE query_hash = ? AND expires_at > ?`,
		queryHash, formatTime(time.Now()))

	var entry types.QueryCacheEntry
	var created, expires string
	err := row.Scan(&entry.ID, &entry.QueryHash, &entry.Query, &entry.Results,
		&created, &expires, &entry.HitCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreError("cache_get", err)
	}
	entry.CreatedAt = parseTime(created)
	entry.ExpiresAt = parseTime(expires)

	if _, err := s.exec(ctx, "cache_hit",
		`UPDATE search_cache SET hit_count = hit_count + 1 WHERE id = ?`, entry.ID); err != nil {
		s.log.Warning("failed to bump cache hit count: %v", err)
	}
	entry.HitCount++
	return &entry, nil
}

// TouchCache increments the hit counter of an unexpired cache row. Callers
// serving a hit from a faster layer use it to keep the persistent counter
// accurate.
func (s *Store) TouchCache(ctx context.Context, queryHash string) error {
	_, err := s.exec(ctx, "cache_touch",
		`UPDATE search_cache SET hit_count = hit_count + 1
		 WHERE query_hash = ? AND expires_at > ?`,
		queryHash, formatTime(time.Now()))
	return err
}

// CacheResults upserts a serialized result list under a query hash.
func (s *Store) CacheResults(ctx context.Context, queryHash, query, resultsJSON string, ttl time.Duration) error {
	now := time.Now()
	_, err := s.exec(ctx, "cache_put",
		`INSERT INTO search_cache (query_hash, query_text, results_json, created_at, expires_at, hit_count)
		 VALUES (?, ?, ?, ?, ?, 0)
		 ON CONFLICT(query_hash) DO UPDATE SET
			results_json = excluded.results_json,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			hit_count = 0`,
		queryHash, query, resultsJSON, formatTime(now), formatTime(now.Add(ttl)))
	return err
}

// CleanupExpiredCache deletes expired cache rows and returns how many went.
func (s *Store) CleanupExpiredCache(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, "cache_cleanup",
		`DELETE FROM search_cache WHERE expires_at <= ?`, formatTime(time.Now()))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// sweepExpiredCache is the write-triggered sweep. Staleness is bounded by the
// TTL rather than tracked per key.
func (s *Store) sweepExpiredCache(ctx context.Context) {
	if n, err := s.CleanupExpiredCache(ctx); err != nil {
		s.log.Warning("cache sweep failed: %v", err)
	} else if n > 0 {
		s.log.Debug("cache sweep removed %d expired entries", n)
	}
}
