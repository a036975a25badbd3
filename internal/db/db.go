// Package db keeps the build ledger: one row per build recording what was
// collected, how far collection got and where the snapshot was written.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	conn *sql.DB
	Path string
}

// OpenDB opens a SQLite database with WAL mode and foreign keys enabled and
// brings the ledger schema up to date.
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer; also keeps ":memory:" databases on a single connection.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	d := &DB{conn: conn, Path: path}
	if err := d.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying sql.DB for custom queries
func (d *DB) Conn() *sql.DB {
	return d.conn
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		search TEXT NOT NULL,
		type_search TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		enough_data INTEGER NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0,
		collected_count INTEGER NOT NULL DEFAULT 0,
		analyzed_count INTEGER NOT NULL DEFAULT 0,
		node_count INTEGER NOT NULL DEFAULT 0,
		edge_count INTEGER NOT NULL DEFAULT 0,
		layout_algo TEXT NOT NULL DEFAULT '',
		community_algo TEXT NOT NULL DEFAULT '',
		last_seen_event_id TEXT NOT NULL DEFAULT '',
		last_seen_event_ns INTEGER NOT NULL DEFAULT 0,
		most_recent_event_id TEXT NOT NULL DEFAULT '',
		most_recent_event_ns INTEGER NOT NULL DEFAULT 0,
		collected_ns INTEGER NOT NULL DEFAULT 0,
		snapshot_path TEXT NOT NULL DEFAULT '',
		checkpoints INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_builds_search ON builds(search, updated_at)`,
}

func (d *DB) migrate() error {
	for i, stmt := range migrations {
		if _, err := d.conn.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
