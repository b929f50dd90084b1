package storage

import (
	"context"

	"marketdata-archiver/internal/domain"
)

// ArchiveStore persists the normalized event sequence of archive runs.
type ArchiveStore interface {
	// WriteRun stores the complete ordered event sequence of one run.
	// Returns ErrDuplicateKey if the run was already archived.
	WriteRun(ctx context.Context, run domain.RunKey, events []*domain.Event) error

	// GetByRun retrieves a run's events in their original order.
	// Returns ErrNotFound if the run was never archived.
	GetByRun(ctx context.Context, run domain.RunKey) ([]*domain.Event, error)

	// HasRun reports whether the run was archived.
	HasRun(ctx context.Context, run domain.RunKey) (bool, error)
}

// MarketStore provides access to markets storage.
type MarketStore interface {
	// Upsert inserts or replaces a market keyed by (exchange, market).
	Upsert(ctx context.Context, m *domain.Market) error

	// GetByExchange retrieves all markets of an exchange, ordered by market ASC.
	GetByExchange(ctx context.Context, exchange string) ([]*domain.Market, error)

	// GetAll retrieves all markets, ordered by (exchange, market) ASC.
	GetAll(ctx context.Context) ([]*domain.Market, error)
}

// RunStore provides access to archive_runs storage.
type RunStore interface {
	// Insert adds a run record. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// GetByRunKey retrieves all records of a run, ordered by started_at ASC.
	GetByRunKey(ctx context.Context, run domain.RunKey) ([]*domain.RunRecord, error)

	// GetAll retrieves all records, ordered by started_at ASC.
	GetAll(ctx context.Context) ([]*domain.RunRecord, error)
}
