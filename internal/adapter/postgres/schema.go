package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS circuit_breakers (
	service_name   TEXT PRIMARY KEY,
	state          TEXT NOT NULL DEFAULT 'closed',
	fail_count     INTEGER NOT NULL DEFAULT 0,
	last_failure   TIMESTAMPTZ,
	cooldown_until TIMESTAMPTZ,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS retrieval_cache (
	id           BIGSERIAL PRIMARY KEY,
	query_hash   TEXT NOT NULL,
	source       TEXT NOT NULL,
	url          TEXT,
	title        TEXT,
	snippet      TEXT NOT NULL,
	score        DOUBLE PRECISION NOT NULL,
	retrieved_at TIMESTAMPTZ NOT NULL,
	ttl          TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_retrieval_cache_hash_ttl ON retrieval_cache (query_hash, ttl);
`

// EnsureSchema creates the breaker and cache tables if they don't exist.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
