package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/evidence-service/internal/entity"
)

// RetrievalCacheRepoImpl provides a concrete implementation for the RetrievalCacheRepository interface using PostgreSQL.
type RetrievalCacheRepoImpl struct {
	db *pgxpool.Pool
}

// NewRetrievalCacheRepo creates a new instance of RetrievalCacheRepoImpl.
func NewRetrievalCacheRepo(db *pgxpool.Pool) *RetrievalCacheRepoImpl {
	return &RetrievalCacheRepoImpl{db: db}
}

// Put appends one row per record within a single transaction.
func (r *RetrievalCacheRepoImpl) Put(ctx context.Context, key string, records []entity.EvidenceRecord, ttl time.Time) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`
			INSERT INTO retrieval_cache (query_hash, source, url, title, snippet, score, retrieved_at, ttl)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`,
			key, string(rec.Source), rec.URL, rec.Title, rec.Snippet, rec.Score, rec.RetrievedAt, ttl,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Get retrieves the rows for key that are still live at now, oldest first.
func (r *RetrievalCacheRepoImpl) Get(ctx context.Context, key string, now time.Time) ([]entity.EvidenceRecord, error) {
	query := `
		SELECT source, url, title, snippet, score, retrieved_at
		FROM retrieval_cache
		WHERE query_hash = $1 AND ttl > $2
		ORDER BY id;
	`
	rows, err := r.db.Query(ctx, query, key, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []entity.EvidenceRecord
	for rows.Next() {
		var (
			rec    entity.EvidenceRecord
			source string
		)
		if err := rows.Scan(&source, &rec.URL, &rec.Title, &rec.Snippet, &rec.Score, &rec.RetrievedAt); err != nil {
			return nil, err
		}
		rec.Source = entity.Source(source)
		records = append(records, rec)
	}
	return records, rows.Err()
}
