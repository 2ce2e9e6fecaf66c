package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS circuit_breakers (
	service_name   TEXT PRIMARY KEY,
	state          TEXT NOT NULL DEFAULT 'closed',
	fail_count     INTEGER NOT NULL DEFAULT 0,
	last_failure   INTEGER,
	cooldown_until INTEGER,
	updated_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS retrieval_cache (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	query_hash   TEXT NOT NULL,
	source       TEXT NOT NULL,
	url          TEXT,
	title        TEXT,
	snippet      TEXT NOT NULL,
	score        REAL NOT NULL,
	retrieved_at INTEGER NOT NULL,
	ttl          INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_retrieval_cache_hash_ttl ON retrieval_cache (query_hash, ttl);
`

// Open opens the database at path and applies the schema. Use ":memory:"
// for an ephemeral store; the pool is then pinned to one connection so
// every caller sees the same database.
func Open(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" && !strings.Contains(path, "?") {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := EnsureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the breaker and cache tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
