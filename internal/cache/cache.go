// Package cache provides the SQLite-backed local fallback store: the last
// known disposition number floor and the list of dispositions created while
// the backend was unreachable. Everything here is advisory, emergency state,
// superseded by server data the moment the backend is reachable again.
package cache

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS counters (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS offline_disposisi (
	id          TEXT PRIMARY KEY,
	letterin_id TEXT NOT NULL,
	no_dispo    INTEGER NOT NULL,
	tgl_dispo   TEXT NOT NULL,
	dispo_ke    TEXT NOT NULL DEFAULT '[]',
	isi_dispo   TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Counter names.
const counterLastDisposisi = "lastDisposisiNumber"

// DB wraps a sql.DB with fallback-store operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cache: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
