package statistics

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// CacheRepository persists computed Statistics as msgpack blobs with
// expiration timestamps. The cache is disposable: every entry can be
// recomputed from history.db, so decode failures count as misses and a
// data reload wipes it wholesale.
type CacheRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCacheRepository creates a cache repository over cache.db.
func NewCacheRepository(db *sql.DB, log zerolog.Logger) *CacheRepository {
	return &CacheRepository{
		db:  db,
		log: log.With().Str("repo", "stats_cache").Logger(),
	}
}

// Store saves statistics under a key with expiration = now + ttl.
func (r *CacheRepository) Store(key string, stats *Statistics, ttl time.Duration) error {
	payload, err := msgpack.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal statistics: %w", err)
	}

	now := time.Now()
	_, err = r.db.Exec(
		`INSERT OR REPLACE INTO stats_cache (cache_key, payload, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		key, payload, now.Unix(), now.Add(ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store statistics: %w", err)
	}

	return nil
}

// GetIfFresh returns the cached statistics for a key only while their
// expiration is in the future. Returns nil, nil on a miss.
func (r *CacheRepository) GetIfFresh(key string) (*Statistics, error) {
	var payload []byte
	err := r.db.QueryRow(
		`SELECT payload FROM stats_cache WHERE cache_key = ? AND expires_at > ?`,
		key, time.Now().Unix(),
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read statistics cache: %w", err)
	}

	var stats Statistics
	if err := msgpack.Unmarshal(payload, &stats); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		return nil, nil
	}

	return &stats, nil
}

// InvalidateAll empties the cache. Called after a market-data reload,
// the single event that makes every entry stale at once.
func (r *CacheRepository) InvalidateAll() error {
	result, err := r.db.Exec(`DELETE FROM stats_cache`)
	if err != nil {
		return fmt.Errorf("failed to invalidate statistics cache: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n > 0 {
		r.log.Info().Int64("entries", n).Msg("Invalidated statistics cache")
	}
	return nil
}

// DeleteExpired removes entries past their expiration and reports how
// many went.
func (r *CacheRepository) DeleteExpired() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM stats_cache WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	return result.RowsAffected()
}

// Count returns the number of cached entries, fresh or stale.
func (r *CacheRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM stats_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}
