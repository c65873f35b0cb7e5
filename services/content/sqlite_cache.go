package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const createContentCacheTable = `
CREATE TABLE IF NOT EXISTS content_cache (
	cache_key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
`

// SQLiteCache is a Cache persisted in a SQLite file, so generated copy
// survives restarts
type SQLiteCache struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteCache opens (or creates) the cache database at path
func NewSQLiteCache(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open content cache db: %w", err)
	}
	// a single connection keeps writes serialized
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createContentCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate content cache db: %w", err)
	}

	return &SQLiteCache{db: db, now: time.Now}, nil
}

// Get returns the value if present and unexpired
func (c *SQLiteCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value     []byte
		expiresAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM content_cache WHERE cache_key = ?`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("content cache get: %w", err)
	}

	if c.now().UnixMilli() >= expiresAt {
		return nil, false, nil
	}
	return value, true, nil
}

// Set stores value for ttl
func (c *SQLiteCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := c.now()
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO content_cache (cache_key, value, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		key, value, now.UnixMilli(), now.Add(ttl).UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("content cache set: %w", err)
	}
	return nil
}

// Delete removes a single entry
func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM content_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("content cache delete: %w", err)
	}
	return nil
}

// Clear removes all entries
func (c *SQLiteCache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM content_cache`); err != nil {
		return fmt.Errorf("content cache clear: %w", err)
	}
	return nil
}

// PurgeExpired removes expired rows and returns how many were dropped
func (c *SQLiteCache) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM content_cache WHERE expires_at <= ?`, c.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("content cache purge: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database connection
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
