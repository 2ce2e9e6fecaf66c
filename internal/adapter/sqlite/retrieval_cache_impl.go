package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/user/evidence-service/internal/entity"
)

// RetrievalCacheRepoImpl stores cached evidence rows in SQLite.
type RetrievalCacheRepoImpl struct {
	db *sql.DB
}

// NewRetrievalCacheRepo creates a new instance of RetrievalCacheRepoImpl.
func NewRetrievalCacheRepo(db *sql.DB) *RetrievalCacheRepoImpl {
	return &RetrievalCacheRepoImpl{db: db}
}

// Put appends one row per record in a single transaction.
func (r *RetrievalCacheRepoImpl) Put(ctx context.Context, key string, records []entity.EvidenceRecord, ttl time.Time) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO retrieval_cache (query_hash, source, url, title, snippet, score, retrieved_at, ttl)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, key, string(rec.Source), nullString(rec.URL), nullString(rec.Title),
			rec.Snippet, rec.Score, rec.RetrievedAt.UnixMilli(), ttl.UnixMilli()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Get returns rows under key still live at now, in insertion order.
func (r *RetrievalCacheRepoImpl) Get(ctx context.Context, key string, now time.Time) ([]entity.EvidenceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT source, url, title, snippet, score, retrieved_at
		FROM retrieval_cache
		WHERE query_hash = ?1 AND ttl > ?2
		ORDER BY id`, key, now.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []entity.EvidenceRecord
	for rows.Next() {
		var (
			rec         entity.EvidenceRecord
			source      string
			url, title  sql.NullString
			retrievedAt int64
		)
		if err := rows.Scan(&source, &url, &title, &rec.Snippet, &rec.Score, &retrievedAt); err != nil {
			return nil, err
		}
		rec.Source = entity.Source(source)
		if url.Valid {
			rec.URL = &url.String
		}
		if title.Valid {
			rec.Title = &title.String
		}
		rec.RetrievedAt = time.UnixMilli(retrievedAt).UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
