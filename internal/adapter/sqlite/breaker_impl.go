package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/user/evidence-service/internal/entity"
	"github.com/user/evidence-service/internal/repository"
)

// BreakerRepoImpl stores breaker rows in SQLite. Timestamps are unix millis.
type BreakerRepoImpl struct {
	db *sql.DB
}

// NewBreakerRepo creates a new instance of BreakerRepoImpl.
func NewBreakerRepo(db *sql.DB) *BreakerRepoImpl {
	return &BreakerRepoImpl{db: db}
}

const breakerColumns = `service_name, state, fail_count, last_failure, cooldown_until`

func (r *BreakerRepoImpl) Get(ctx context.Context, service string) (*entity.CircuitBreakerState, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+breakerColumns+` FROM circuit_breakers WHERE service_name = ?1`, service)
	state, err := scanBreaker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return state, err
}

func (r *BreakerRepoImpl) RecordSuccess(ctx context.Context, service string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO circuit_breakers (service_name, state, fail_count, last_failure, cooldown_until, updated_at)
		VALUES (?1, 'closed', 0, NULL, NULL, ?2)
		ON CONFLICT(service_name) DO UPDATE SET
			state = 'closed',
			fail_count = 0,
			last_failure = NULL,
			cooldown_until = NULL,
			updated_at = excluded.updated_at`,
		service, time.Now().UnixMilli())
	return err
}

// RecordFailure increments fail_count and derives the new state in one statement.
func (r *BreakerRepoImpl) RecordFailure(ctx context.Context, service string, at time.Time, threshold int, cooldownUntil time.Time) (*entity.CircuitBreakerState, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO circuit_breakers (service_name, state, fail_count, last_failure, cooldown_until, updated_at)
		VALUES (?1,
			CASE WHEN 1 >= ?3 THEN 'open' ELSE 'half_open' END,
			1, ?2,
			CASE WHEN 1 >= ?3 THEN ?4 ELSE NULL END,
			?2)
		ON CONFLICT(service_name) DO UPDATE SET
			fail_count = circuit_breakers.fail_count + 1,
			state = CASE WHEN circuit_breakers.fail_count + 1 >= ?3 THEN 'open' ELSE 'half_open' END,
			cooldown_until = CASE WHEN circuit_breakers.fail_count + 1 >= ?3 THEN ?4 ELSE NULL END,
			last_failure = excluded.last_failure,
			updated_at = excluded.updated_at
		RETURNING `+breakerColumns,
		service, at.UnixMilli(), threshold, cooldownUntil.UnixMilli())
	return scanBreaker(row)
}

func (r *BreakerRepoImpl) Reset(ctx context.Context, service string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM circuit_breakers WHERE service_name = ?1`, service)
	return err
}

func (r *BreakerRepoImpl) List(ctx context.Context) ([]*entity.CircuitBreakerState, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+breakerColumns+` FROM circuit_breakers ORDER BY service_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*entity.CircuitBreakerState
	for rows.Next() {
		state, err := scanBreaker(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBreaker(row scanner) (*entity.CircuitBreakerState, error) {
	var (
		s                     entity.CircuitBreakerState
		state                 string
		lastFailure, cooldown sql.NullInt64
	)
	if err := row.Scan(&s.Service, &state, &s.FailCount, &lastFailure, &cooldown); err != nil {
		return nil, err
	}
	s.State = entity.BreakerStatus(state)
	s.LastFailure = fromMillis(lastFailure)
	s.CooldownUntil = fromMillis(cooldown)
	return &s, nil
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
