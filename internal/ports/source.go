package ports

import (
	"context"
	"iter"
	"time"

	"candleBacktest/internal/domain"
)

// BarSource supplies raw OHLCV rows from some external place (files, an exchange).
// Column renaming and transport concerns stay inside the implementation.
type BarSource interface {
	// Name identifies the source in logs.
	Name() string
	// Load returns the raw rows grouped by origin, in a deterministic order.
	Load(ctx context.Context) ([]domain.RawSource, error)
}

// TimeSeries is the read-only view of an ordered, deduplicated bar series.
// Implementations must be safe for concurrent readers.
type TimeSeries interface {
	// PriceAt returns the bar with exactly the given timestamp.
	PriceAt(ts time.Time) (domain.Bar, bool)
	// ForwardSlice yields every bar with Timestamp >= from in ascending order.
	// Each call returns an independent sequence.
	ForwardSlice(from time.Time) iter.Seq[domain.Bar]
	// LastBar returns the most recent bar, or ErrEmptyData.
	LastBar() (domain.Bar, error)
}
