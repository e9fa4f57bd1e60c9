package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CacheEntry is a cached read result. ExpiresAt is zero for entries with no
// expiry.
type CacheEntry struct {
	Key       string
	Data      []byte
	CachedAt  time.Time
	ExpiresAt time.Time
}

// PutCached upserts a cache entry under the caller-chosen key.
// A positive ttl sets expires_at = now + ttl; a zero or negative ttl stores
// the entry without expiry.
func (s *Store) PutCached(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	now := s.now()

	var expiresAt any
	if ttl > 0 {
		expiresAt = formatTime(now.Add(ttl))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache (key, data, cached_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at
	`, key, data, formatTime(now), expiresAt)
	if err != nil {
		return fmt.Errorf("put cached %q: %w", key, err)
	}

	return nil
}

// GetCached returns the cached data for key, or ok=false if the key is
// absent or expired. An expired entry found during Get is deleted as a side
// effect, so expiry behaves as absence even between sweeps.
func (s *Store) GetCached(ctx context.Context, key string) (data []byte, ok bool, err error) {
	var expiresAt sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT data, expires_at FROM cache WHERE key = ?
	`, key).Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached %q: %w", key, err)
	}

	if expiresAt.Valid {
		exp, err := parseTime(expiresAt.String)
		if err != nil {
			return nil, false, fmt.Errorf("get cached %q: %w", key, err)
		}
		if !exp.After(s.now()) {
			// Lazy purge - an expired entry must behave as absent.
			if _, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key); err != nil {
				return nil, false, fmt.Errorf("get cached %q: purge expired: %w", key, err)
			}
			return nil, false, nil
		}
	}

	return data, true, nil
}

// InvalidateCached removes a cache entry. Idempotent.
func (s *Store) InvalidateCached(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("invalidate cached %q: %w", key, err)
	}
	return nil
}

// DeleteExpired removes every cache entry whose expiry has passed and
// returns how many were removed. Run periodically by the engine's sweeper
// and callable manually.
func (s *Store) DeleteExpired(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM cache
		WHERE expires_at IS NOT NULL AND expires_at <= ?
	`, formatTime(s.now()))
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired: rows affected: %w", err)
	}

	return int(n), nil
}

// CacheCount returns the number of stored cache entries. The count includes
// expired entries that have not been swept yet - it is a cheap approximate
// count, not a count of live entries.
func (s *Store) CacheCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count cache: %w", err)
	}
	return count, nil
}
