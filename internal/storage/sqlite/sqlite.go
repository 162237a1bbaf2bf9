// Package sqlite provides a single-file storage backend for local
// deployments where running a PostgreSQL instance is not worth it.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// DB wraps the sqlite database handle for dependency injection.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the database file and applies the schema.
// Foreign keys are enforced per connection via pragma.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{DB: db}, nil
}

// Close closes the database handle.
func (d *DB) Close() error {
	return d.DB.Close()
}

func applySchema(ctx context.Context, db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS objects (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			ra REAL,
			dec REAL,
			extra TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS observations (
			object_id TEXT NOT NULL REFERENCES objects(id),
			time REAL NOT NULL CHECK (time >= 0),
			flux REAL NOT NULL,
			uncertainty REAL CHECK (uncertainty >= 0),
			quality TEXT NOT NULL DEFAULT 'good',
			created_at INTEGER NOT NULL,
			PRIMARY KEY (object_id, time)
		)`,
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
