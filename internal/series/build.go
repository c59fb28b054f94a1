package series

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"candleBacktest/internal/domain"
	"candleBacktest/internal/ports"
	"candleBacktest/internal/utils"
)

// RowError describes one input row that was dropped during Build.
type RowError struct {
	Source string // Name of the RawSource
	Row    int    // 1-based position within the source
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s row %d: %s", e.Source, e.Row, e.Reason)
}

// Unwrap lets callers match dropped rows with errors.Is(err, ports.ErrData).
func (e *RowError) Unwrap() error {
	return ports.ErrData
}

// Report summarizes what Build did with its input.
type Report struct {
	Sources    int // Every source handed in, including ones that delivered no rows
	RowsRead   int
	Dropped    []*RowError
	Duplicates int // Rows replaced by a later row with the same timestamp
}

// Kept returns the number of bars that made it into the series.
func (r Report) Kept() int {
	return r.RowsRead - len(r.Dropped) - r.Duplicates
}

// Build normalizes raw rows from one or more sources into a Series.
//
// Rows with a missing or unparseable timestamp or a missing/non-numeric
// price or volume are dropped and listed in the Report. Sources are merged in
// the order given; for duplicate timestamps the last-seen row wins. Build
// fails with ports.ErrEmptyData only when no row survives.
func Build(sources []domain.RawSource) (*Series, Report, error) {
	report := Report{Sources: len(sources)}
	bars := make([]domain.Bar, 0)

	for _, src := range sources {
		for i, row := range src.Rows {
			report.RowsRead++
			bar, reason := normalizeRow(row)
			if reason != "" {
				report.Dropped = append(report.Dropped, &RowError{Source: src.Name, Row: i + 1, Reason: reason})
				continue
			}
			bars = append(bars, bar)
		}
	}

	s, duplicates, err := newSeries(bars)
	if err != nil {
		return nil, report, fmt.Errorf("all %d rows from %d sources were unusable: %w", report.RowsRead, report.Sources, ports.ErrEmptyData)
	}
	report.Duplicates = duplicates
	return s, report, nil
}

// normalizeRow converts a raw row into a bar. A non-empty reason means the
// row is malformed.
func normalizeRow(row domain.RawRow) (domain.Bar, string) {
	if strings.TrimSpace(row.Timestamp) == "" {
		return domain.Bar{}, "missing timestamp"
	}
	ts, err := utils.ParseTimestamp(row.Timestamp)
	if err != nil {
		return domain.Bar{}, err.Error()
	}

	bar := domain.Bar{Timestamp: ts}
	fields := []struct {
		name  string
		value string
		dest  *float64
	}{
		{"open", row.Open, &bar.Open},
		{"high", row.High, &bar.High},
		{"low", row.Low, &bar.Low},
		{"close", row.Close, &bar.Close},
		{"volume", row.Volume, &bar.Volume},
	}
	for _, f := range fields {
		v := strings.TrimSpace(f.value)
		if v == "" {
			return domain.Bar{}, "missing " + f.name
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return domain.Bar{}, fmt.Sprintf("non-numeric %s '%s'", f.name, v)
		}
		*f.dest = parsed
	}
	return bar, ""
}
