package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/evidence-service/internal/entity"
	"github.com/user/evidence-service/internal/repository"
)

// BreakerRepoImpl provides a concrete implementation for the BreakerRepository interface using PostgreSQL.
type BreakerRepoImpl struct {
	db *pgxpool.Pool
}

// NewBreakerRepo creates a new instance of BreakerRepoImpl.
func NewBreakerRepo(db *pgxpool.Pool) *BreakerRepoImpl {
	return &BreakerRepoImpl{db: db}
}

const breakerColumns = `service_name, state, fail_count, last_failure, cooldown_until`

// Get retrieves the stored breaker row for a service.
func (r *BreakerRepoImpl) Get(ctx context.Context, service string) (*entity.CircuitBreakerState, error) {
	row := r.db.QueryRow(ctx, `SELECT `+breakerColumns+` FROM circuit_breakers WHERE service_name = $1;`, service)
	state, err := scanBreaker(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return state, err
}

// RecordSuccess closes the breaker and clears its failure history.
func (r *BreakerRepoImpl) RecordSuccess(ctx context.Context, service string) error {
	query := `
		INSERT INTO circuit_breakers (service_name, state, fail_count, last_failure, cooldown_until, updated_at)
		VALUES ($1, 'closed', 0, NULL, NULL, NOW())
		ON CONFLICT (service_name) DO UPDATE SET
			state = 'closed',
			fail_count = 0,
			last_failure = NULL,
			cooldown_until = NULL,
			updated_at = NOW();
	`
	_, err := r.db.Exec(ctx, query, service)
	return err
}

// RecordFailure increments fail_count in a single statement, so concurrent
// writers from several processes never lose an increment.
func (r *BreakerRepoImpl) RecordFailure(ctx context.Context, service string, at time.Time, threshold int, cooldownUntil time.Time) (*entity.CircuitBreakerState, error) {
	query := `
		INSERT INTO circuit_breakers (service_name, state, fail_count, last_failure, cooldown_until, updated_at)
		VALUES ($1,
			CASE WHEN 1 >= $3::int THEN 'open' ELSE 'half_open' END,
			1, $2,
			CASE WHEN 1 >= $3::int THEN $4::timestamptz ELSE NULL END,
			$2)
		ON CONFLICT (service_name) DO UPDATE SET
			fail_count = circuit_breakers.fail_count + 1,
			state = CASE WHEN circuit_breakers.fail_count + 1 >= $3::int THEN 'open' ELSE 'half_open' END,
			cooldown_until = CASE WHEN circuit_breakers.fail_count + 1 >= $3::int THEN $4::timestamptz ELSE NULL END,
			last_failure = EXCLUDED.last_failure,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + breakerColumns + `;
	`
	row := r.db.QueryRow(ctx, query, service, at, threshold, cooldownUntil)
	return scanBreaker(row)
}

// Reset removes the breaker row, which reads back as closed.
func (r *BreakerRepoImpl) Reset(ctx context.Context, service string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM circuit_breakers WHERE service_name = $1;`, service)
	return err
}

// List retrieves every breaker row ordered by service name.
func (r *BreakerRepoImpl) List(ctx context.Context) ([]*entity.CircuitBreakerState, error) {
	rows, err := r.db.Query(ctx, `SELECT `+breakerColumns+` FROM circuit_breakers ORDER BY service_name;`)
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

func scanBreaker(row pgx.Row) (*entity.CircuitBreakerState, error) {
	var (
		s     entity.CircuitBreakerState
		state string
	)
	if err := row.Scan(&s.Service, &state, &s.FailCount, &s.LastFailure, &s.CooldownUntil); err != nil {
		return nil, err
	}
	s.State = entity.BreakerStatus(state)
	return &s, nil
}
