package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"marketdata-archiver/internal/domain"
	"marketdata-archiver/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a run record. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunRecord) (err error) {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}
	defer observeQuery("insert_run", time.Now(), &err)

	query := `
		INSERT INTO archive_runs (
			run_id, exchange, market, run_date, status,
			event_count, error, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = s.pool.Exec(ctx, query,
		r.RunID,
		r.Exchange,
		r.Market,
		r.Key().Date,
		string(r.Status),
		r.EventCount,
		r.Error,
		r.StartedAt.UTC(),
		r.FinishedAt.UTC(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert archive run: %w", err)
	}
	return nil
}

// GetByRunKey retrieves all records of a run, ordered by started_at ASC.
func (s *RunStore) GetByRunKey(ctx context.Context, run domain.RunKey) (records []*domain.RunRecord, err error) {
	defer observeQuery("get_runs_by_key", time.Now(), &err)

	query := `
		SELECT run_id::text, exchange, market, run_date, status,
			event_count, error, started_at, finished_at
		FROM archive_runs
		WHERE exchange = $1 AND market = $2 AND run_date = $3
		ORDER BY started_at ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, run.Exchange, run.Market, run.Date.UTC())
	if err != nil {
		return nil, fmt.Errorf("query archive runs by key: %w", err)
	}
	defer rows.Close()

	return scanRunRecords(rows)
}

// GetAll retrieves all records, ordered by started_at ASC.
func (s *RunStore) GetAll(ctx context.Context) (records []*domain.RunRecord, err error) {
	defer observeQuery("get_all_runs", time.Now(), &err)

	query := `
		SELECT run_id::text, exchange, market, run_date, status,
			event_count, error, started_at, finished_at
		FROM archive_runs
		ORDER BY started_at ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all archive runs: %w", err)
	}
	defer rows.Close()

	return scanRunRecords(rows)
}

func scanRunRecords(rows pgx.Rows) ([]*domain.RunRecord, error) {
	var records []*domain.RunRecord

	for rows.Next() {
		var (
			r      domain.RunRecord
			date   time.Time
			status string
		)
		err := rows.Scan(
			&r.RunID,
			&r.Exchange,
			&r.Market,
			&date,
			&status,
			&r.EventCount,
			&r.Error,
			&r.StartedAt,
			&r.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan archive run row: %w", err)
		}

		y, m, d := date.Date()
		r.Date = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		r.Status = domain.RunStatus(status)
		r.StartedAt = r.StartedAt.UTC()
		r.FinishedAt = r.FinishedAt.UTC()
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive run rows: %w", err)
	}

	return records, nil
}
