package orientation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"carousel3d/carousel"
)

const schema = `
CREATE TABLE IF NOT EXISTS image_orientations (
	key         TEXT PRIMARY KEY,
	orientation TEXT    NOT NULL,
	width       INTEGER NOT NULL DEFAULT 0,
	height      INTEGER NOT NULL DEFAULT 0,
	updated_at  INTEGER NOT NULL
)`

// SQLiteCache persists orientations across daemon restarts.
type SQLiteCache struct {
	db *sql.DB
}

// OpenSQLiteCache opens (creating if needed) the cache database at path.
func OpenSQLiteCache(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open orientation cache %s: %w", path, err)
	}

	// Concurrent resolvers share one file; wait out transient locks.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create orientation cache schema: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	var (
		e       Entry
		o       string
		updated int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT orientation, width, height, updated_at FROM image_orientations WHERE key = ?`,
		key,
	).Scan(&o, &e.Width, &e.Height, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("query orientation %q: %w", key, err)
	}

	e.Orientation = carousel.Orientation(o)
	if !e.Orientation.Valid() {
		// Rows written by a newer build with unknown classes count as misses.
		return Entry{}, false, nil
	}
	e.UpdatedAt = time.Unix(updated, 0).UTC()
	return e, true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, key string, e Entry) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	_, err := c.db.ExecContext(ctx, `
INSERT INTO image_orientations (key, orientation, width, height, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	orientation = excluded.orientation,
	width       = excluded.width,
	height      = excluded.height,
	updated_at  = excluded.updated_at`,
		key, string(e.Orientation), e.Width, e.Height, e.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("store orientation %q: %w", key, err)
	}
	return nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
