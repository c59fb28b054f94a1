// Package csvsource loads OHLCV rows from a glob of CSV files.
package csvsource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	"golang.org/x/sync/errgroup"

	"candleBacktest/internal/domain"
	"candleBacktest/internal/ports"
)

var _ ports.BarSource = (*Source)(nil)

// columnAliases maps lower-cased header names onto the canonical fields.
var columnAliases = map[string]string{
	"open_time": "timestamp",
	"timestamp": "timestamp",
	"date":      "timestamp",
	"time":      "timestamp",
	"open":      "open",
	"high":      "high",
	"low":       "low",
	"close":     "close",
	"volume":    "volume",
}

var requiredColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// Config holds configuration for the CSV source.
type Config struct {
	Pattern string // Glob, e.g. "historical/*.csv"
	Workers int    // Files read concurrently
	Logger  ports.Logger
}

// Source reads every file matching a glob. Files are returned in lexical
// path order regardless of how they were read.
type Source struct {
	pattern string
	workers int
	logger  ports.Logger
}

// New creates a CSV source.
func New(cfg Config) (*Source, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for CSV source")
	}
	if cfg.Pattern == "" {
		return nil, fmt.Errorf("CSV glob pattern is empty: %w", ports.ErrConfigurationError)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	return &Source{pattern: cfg.Pattern, workers: cfg.Workers, logger: cfg.Logger}, nil
}

// Name identifies the source in logs.
func (s *Source) Name() string {
	return "csv:" + s.pattern
}

// Load reads all matching files. A file that cannot be read is logged and
// returned without rows, so it still counts as a loaded file; only a glob
// that matches nothing is an error.
func (s *Source) Load(ctx context.Context) ([]domain.RawSource, error) {
	paths, err := filepath.Glob(s.pattern)
	if err != nil {
		return nil, fmt.Errorf("bad CSV glob '%s': %w: %w", s.pattern, ports.ErrConfigurationError, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no CSV files match '%s': %w", s.pattern, ports.ErrSourceUnavailable)
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
				s.logger.Error(gctx, err, "Error reading CSV file, skipping", map[string]interface{}{"file": path})
				return nil
			}
			loaded[i].Rows = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows int
	for _, src := range loaded {
		rows += len(src.Rows)
	}
	s.logger.Info(ctx, "CSV files loaded", map[string]interface{}{"matched": len(paths), "rows": rows})
	return loaded, nil
}

// ReadFile decodes one CSV file into raw rows, renaming known column aliases.
// Columns other than the six OHLCV fields are ignored. A row with too few
// cells keeps "" for the missing ones so normalization drops that row alone.
func ReadFile(path string) ([]domain.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open '%s': %w", path, err)
	}
	defer f.Close()

	reader := gocsv.LazyCSVReader(f)
	if r, ok := reader.(*csv.Reader); ok {
		r.FieldsPerRecord = -1
	}

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of '%s': %w: %w", path, ports.ErrUnsupportedFormat, err)
	}

	columns := resolveColumns(header)
	for _, want := range requiredColumns {
		if _, ok := columns[want]; !ok {
			return nil, fmt.Errorf("'%s' has no %s column: %w", path, want, ports.ErrUnsupportedFormat)
		}
	}

	var rows []domain.RawRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV '%s': %w: %w", path, ports.ErrUnsupportedFormat, err)
		}
		cell := func(name string) string {
			if i := columns[name]; i < len(record) {
				return record[i]
			}
			return ""
		}
		rows = append(rows, domain.RawRow{
			Timestamp: cell("timestamp"),
			Open:      cell("open"),
			High:      cell("high"),
			Low:       cell("low"),
			Close:     cell("close"),
			Volume:    cell("volume"),
		})
	}
	return rows, nil
}

// resolveColumns maps each canonical field to its header index. When several
// aliases are present the leftmost one wins.
func resolveColumns(header []string) map[string]int {
	columns := make(map[string]int, len(requiredColumns))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		canonical, ok := columnAliases[key]
		if !ok {
			continue
		}
		if _, taken := columns[canonical]; !taken {
			columns[canonical] = i
		}
	}
	return columns
}
