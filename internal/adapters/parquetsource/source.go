// Package parquetsource loads OHLCV bars from Parquet files.
package parquetsource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/parquet-go/parquet-go"
	"golang.org/x/sync/errgroup"

	"candleBacktest/internal/domain"
	"candleBacktest/internal/ports"
)

var _ ports.BarSource = (*Source)(nil)

// BarRecord is the Parquet schema for bar data.
type BarRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// Config holds configuration for the Parquet source.
type Config struct {
	Pattern string
	Workers int
	Logger  ports.Logger
}

// Source reads every Parquet file matching a glob, in lexical path order.
type Source struct {
	pattern string
	workers int
	logger  ports.Logger
}

// New creates a Parquet source.
func New(cfg Config) (*Source, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Parquet source")
	}
	if cfg.Pattern == "" {
		return nil, fmt.Errorf("Parquet glob pattern is empty: %w", ports.ErrConfigurationError)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	return &Source{pattern: cfg.Pattern, workers: cfg.Workers, logger: cfg.Logger}, nil
}

// Name identifies the source in logs.
func (s *Source) Name() string {
	return "parquet:" + s.pattern
}

// Load reads all matching files. Unreadable ones are logged and returned
// without rows.
func (s *Source) Load(ctx context.Context) ([]domain.RawSource, error) {
	paths, err := filepath.Glob(s.pattern)
	if err != nil {
		return nil, fmt.Errorf("bad Parquet glob '%s': %w: %w", s.pattern, ports.ErrConfigurationError, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no Parquet files match '%s': %w", s.pattern, ports.ErrSourceUnavailable)
	}
	sort.Strings(paths)

	loaded := make([]domain.RawSource, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			loaded[i] = domain.RawSource{Name: path}
			rows, err := ReadFile(path)
			if err != nil {
				s.logger.Error(gctx, err, "Error reading Parquet file, skipping", map[string]interface{}{"file": path})
				return nil
			}
			loaded[i].Rows = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return loaded, nil
}

// ReadFile decodes one Parquet file. Values are formatted back to text so
// they pass through the same normalization as CSV rows.
func ReadFile(path string) ([]domain.RawRow, error) {
	records, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read Parquet '%s': %w: %w", path, ports.ErrUnsupportedFormat, err)
	}

	rows := make([]domain.RawRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, domain.RawRow{
			Timestamp: strconv.FormatInt(r.Timestamp, 10),
			Open:      formatFloat(r.Open),
			High:      formatFloat(r.High),
			Low:       formatFloat(r.Low),
			Close:     formatFloat(r.Close),
			Volume:    formatFloat(r.Volume),
		})
	}
	return rows, nil
}

// WriteFile stores bars in the BarRecord schema.
func WriteFile(path string, bars []domain.Bar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	records := make([]BarRecord, 0, len(bars))
	for _, b := range bars {
		records = append(records, BarRecord{
			Timestamp: b.Timestamp.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}
	return parquet.WriteFile(path, records)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
