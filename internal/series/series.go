// Package series holds the immutable, time-indexed OHLCV bar store that the
// backtest simulator scans.
package series

import (
	"fmt"
	"iter"
	"sort"
	"time"

	"candleBacktest/internal/domain"
	"candleBacktest/internal/ports"
)

// Compile-time interface check.
var _ ports.TimeSeries = (*Series)(nil)

// Series is an ordered sequence of bars with strictly increasing timestamps.
// It is never mutated after construction and is safe for concurrent readers.
type Series struct {
	bars []domain.Bar
}

// New creates a series from already-normalized bars. The input is copied,
// sorted ascending, and duplicate timestamps are collapsed keeping the bar
// that appears last in the input. Returns ports.ErrEmptyData for no bars.
func New(bars []domain.Bar) (*Series, error) {
	s, _, err := newSeries(bars)
	return s, err
}

func newSeries(bars []domain.Bar) (*Series, int, error) {
	if len(bars) == 0 {
		return nil, 0, fmt.Errorf("cannot build series: %w", ports.ErrEmptyData)
	}

	sorted := make([]domain.Bar, len(bars))
	copy(sorted, bars)
	for i := range sorted {
		sorted[i].Timestamp = sorted[i].Timestamp.UTC()
	}
	// Stable sort keeps input order within equal timestamps, so the last
	// element of each run is the last-seen row.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	deduped := sorted[:0]
	duplicates := 0
	for _, b := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].Timestamp.Equal(b.Timestamp) {
			deduped[n-1] = b
			duplicates++
			continue
		}
		deduped = append(deduped, b)
	}

	return &Series{bars: deduped}, duplicates, nil
}

// Len returns the number of bars.
func (s *Series) Len() int {
	return len(s.bars)
}

// Bars returns a copy of all bars in ascending order.
func (s *Series) Bars() []domain.Bar {
	out := make([]domain.Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// Tail returns a copy of the last n bars (fewer if the series is shorter).
func (s *Series) Tail(n int) []domain.Bar {
	if n <= 0 {
		return nil
	}
	if n > len(s.bars) {
		n = len(s.bars)
	}
	out := make([]domain.Bar, n)
	copy(out, s.bars[len(s.bars)-n:])
	return out
}

// PriceAt returns the bar whose timestamp equals ts exactly.
func (s *Series) PriceAt(ts time.Time) (domain.Bar, bool) {
	i := s.search(ts)
	if i < len(s.bars) && s.bars[i].Timestamp.Equal(ts) {
		return s.bars[i], true
	}
	return domain.Bar{}, false
}

// ForwardSlice lazily yields every bar with Timestamp >= from, ascending.
// The start position is resolved when iteration begins, and every call
// returns an independent, restartable sequence.
func (s *Series) ForwardSlice(from time.Time) iter.Seq[domain.Bar] {
	return func(yield func(domain.Bar) bool) {
		for i := s.search(from); i < len(s.bars); i++ {
			if !yield(s.bars[i]) {
				return
			}
		}
	}
}

// FirstBar returns the oldest bar.
func (s *Series) FirstBar() (domain.Bar, error) {
	if len(s.bars) == 0 {
		return domain.Bar{}, fmt.Errorf("first bar: %w", ports.ErrEmptyData)
	}
	return s.bars[0], nil
}

// LastBar returns the most recent bar.
func (s *Series) LastBar() (domain.Bar, error) {
	if len(s.bars) == 0 {
		return domain.Bar{}, fmt.Errorf("last bar: %w", ports.ErrEmptyData)
	}
	return s.bars[len(s.bars)-1], nil
}

// search returns the index of the first bar with Timestamp >= ts.
func (s *Series) search(ts time.Time) int {
	return sort.Search(len(s.bars), func(i int) bool {
		return !s.bars[i].Timestamp.Before(ts)
	})
}
