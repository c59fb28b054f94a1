package ports

import (
	"context"

	"candleBacktest/internal/domain"
)

// RunRepository defines the interface for storing and retrieving backtest runs.
type RunRepository interface {
	// SaveRun stores the run together with its ledger and returns the assigned ID.
	SaveRun(ctx context.Context, run *domain.RunRecord) (int64, error)
	// FindRun retrieves a run and its ledger by ID.
	// Returns nil, nil if not found.
	FindRun(ctx context.Context, id int64) (*domain.RunRecord, error)
	// ListRuns retrieves the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]*domain.RunRecord, error)
}
