package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"candleBacktest/internal/backtesting"
	"candleBacktest/internal/domain"
	"candleBacktest/internal/entries"
	"candleBacktest/internal/optimization"
	"candleBacktest/internal/ports"
	"candleBacktest/internal/report"
	"candleBacktest/internal/series"
)

// maxLoggedDrops caps per-row warnings; the rest are only counted.
const maxLoggedDrops = 20

// Options configures a BacktestService.
type Options struct {
	TieBreak    domain.TieBreak
	ScanWorkers int
}

// Dataset is a loaded, immutable series plus what ingestion did to get it.
type Dataset struct {
	Series    *series.Series
	Report    series.Report
	Anomalies []series.Anomaly
}

// RunOutcome is everything a single backtest produced.
type RunOutcome struct {
	RunID     int64 // Zero when the run was not persisted
	Selection entries.Selection
	Result    *backtesting.Result
	Summary   domain.RunSummary
}

// BacktestService wires ingestion, the simulator and run history together.
type BacktestService struct {
	logger    ports.Logger
	sources   []ports.BarSource
	repo      ports.RunRepository // Optional
	simulator *backtesting.Simulator
	opts      Options
}

// NewBacktestService creates a service. repo may be nil to disable run
// history; sources may be empty when only History is used.
func NewBacktestService(logger ports.Logger, sources []ports.BarSource, repo ports.RunRepository, opts Options) (*BacktestService, error) {
	if logger == nil {
		return nil, fmt.Errorf("missing required dependencies for BacktestService")
	}
	tieBreak, ok := domain.ParseTieBreak(string(opts.TieBreak))
	if !ok {
		return nil, fmt.Errorf("unknown tie-break %q: %w", opts.TieBreak, ports.ErrInvalidParameters)
	}
	opts.TieBreak = tieBreak
	if opts.ScanWorkers < 1 {
		opts.ScanWorkers = 1
	}

	return &BacktestService{
		logger:  logger,
		sources: sources,
		repo:    repo,
		simulator: backtesting.NewSimulator(
			backtesting.WithTieBreak(opts.TieBreak),
			backtesting.WithWorkers(opts.ScanWorkers),
		),
		opts: opts,
	}, nil
}

// LoadSeries reads every source and builds one series. A failing source is
// logged and skipped as long as another source delivers rows.
func (s *BacktestService) LoadSeries(ctx context.Context) (*Dataset, error) {
	if len(s.sources) == 0 {
		return nil, fmt.Errorf("no bar sources configured: %w", ports.ErrConfigurationError)
	}
	var raw []domain.RawSource
	var failures int
	for _, src := range s.sources {
		loaded, err := src.Load(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			s.logger.Error(ctx, err, "Failed to load bar source", map[string]interface{}{"source": src.Name()})
			continue
		}
		raw = append(raw, loaded...)
	}
	if failures == len(s.sources) {
		return nil, fmt.Errorf("all %d bar sources failed: %w", failures, ports.ErrSourceUnavailable)
	}

	ts, rep, err := series.Build(raw)
	if err != nil {
		s.logger.Error(ctx, err, "No usable bars after normalization", map[string]interface{}{"rowsRead": rep.RowsRead})
		return nil, err
	}

	for i, d := range rep.Dropped {
		if i == maxLoggedDrops {
			s.logger.Warn(ctx, "Further dropped rows not logged", map[string]interface{}{"remaining": len(rep.Dropped) - i})
			break
		}
		s.logger.Warn(ctx, "Dropped malformed row", map[string]interface{}{"source": d.Source, "row": d.Row, "reason": d.Reason})
	}

	anomalies := ts.Anomalies()
	if len(anomalies) > 0 {
		s.logger.Warn(ctx, "Bars violate OHLC invariants; kept as-is", map[string]interface{}{"count": len(anomalies), "first": anomalies[0].Reason})
	}

	first, _ := ts.FirstBar()
	last, _ := ts.LastBar()
	s.logger.Info(ctx, report.LoadedLine(rep.Sources, rep.RowsRead), map[string]interface{}{
		"bars":       ts.Len(),
		"dropped":    len(rep.Dropped),
		"duplicates": rep.Duplicates,
		"from":       first.Timestamp.Format(time.RFC3339),
		"to":         last.Timestamp.Format(time.RFC3339),
	})
	return &Dataset{Series: ts, Report: rep, Anomalies: anomalies}, nil
}

// Run parses entryText, simulates the valid entries and records the run.
// A failure to persist is logged and does not fail the run.
func (s *BacktestService) Run(ctx context.Context, ds *Dataset, entryText string, params domain.ExitParameters) (*RunOutcome, error) {
	if ds == nil || ds.Series == nil {
		return nil, fmt.Errorf("no dataset loaded: %w", ports.ErrEmptyData)
	}

	sel := entries.Select(ds.Series, entryText)
	for _, r := range sel.Rejected {
		s.logger.Warn(ctx, "Ignoring unparseable entry", map[string]interface{}{"line": r.Line, "text": r.Text})
	}
	for _, m := range sel.Missing {
		s.logger.Debug(ctx, "Entry has no matching bar", map[string]interface{}{"entry": m.Format(time.RFC3339)})
	}
	s.logger.Info(ctx, "Valid entries found", map[string]interface{}{"count": len(sel.Valid)})

	result, err := s.simulator.Run(ctx, ds.Series, sel.Valid, params)
	if err != nil {
		s.logger.Error(ctx, err, "Backtest failed")
		return nil, err
	}

	summary, err := backtesting.Summarize(result.Trades)
	if err != nil && !errors.Is(err, ports.ErrEmptyData) {
		return nil, err
	}

	outcome := &RunOutcome{Selection: sel, Result: result, Summary: summary}
	if s.repo != nil {
		record := &domain.RunRecord{
			CreatedAt:        time.Now().UTC(),
			Params:           params,
			TieBreak:         s.opts.TieBreak,
			EntriesRequested: len(sel.Valid) + len(sel.Missing) + len(sel.Rejected),
			Trades:           result.Trades,
		}
		if id, err := s.repo.SaveRun(ctx, record); err != nil {
			s.logger.Error(ctx, err, "Failed to persist run")
		} else {
			outcome.RunID = id
		}
	}

	s.logger.Info(ctx, "Backtest finished", map[string]interface{}{
		"trades":      summary.TotalTrades,
		"totalReturn": fmt.Sprintf("%.2f%%", summary.TotalReturnPct),
		"winRate":     fmt.Sprintf("%.2f%%", summary.WinRatePct),
		"runID":       outcome.RunID,
	})
	return outcome, nil
}

// Sweep evaluates a TP×SL grid over the valid entries in entryText.
func (s *BacktestService) Sweep(ctx context.Context, ds *Dataset, entryText string, cfg optimization.OptimizerConfig) ([]optimization.OptimizationResult, error) {
	if ds == nil || ds.Series == nil {
		return nil, fmt.Errorf("no dataset loaded: %w", ports.ErrEmptyData)
	}
	sel := entries.Select(ds.Series, entryText)
	if len(sel.Valid) == 0 {
		return nil, fmt.Errorf("no valid entries to sweep: %w", ports.ErrEmptyData)
	}
	if cfg.TieBreak == "" {
		cfg.TieBreak = s.opts.TieBreak
	}

	optimizer := optimization.NewOptimizer(cfg)
	started := time.Now()
	results, err := optimizer.Optimize(ctx, ds.Series, sel.Valid)
	if err != nil {
		s.logger.Error(ctx, err, "Parameter sweep failed")
		return nil, err
	}
	s.logger.Info(ctx, "Parameter sweep finished", map[string]interface{}{
		"combinations": len(results),
		"entries":      len(sel.Valid),
		"elapsed":      time.Since(started).Round(time.Millisecond).String(),
	})
	return results, nil
}

// History returns the most recent stored runs with summaries recomputed
// from their ledgers.
func (s *BacktestService) History(ctx context.Context, limit int) ([]report.RunRow, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("run history is disabled: %w", ports.ErrConfigurationError)
	}
	runs, err := s.repo.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	rows := make([]report.RunRow, 0, len(runs))
	for _, r := range runs {
		summary, err := backtesting.Summarize(r.Trades)
		if err != nil && !errors.Is(err, ports.ErrEmptyData) {
			return nil, err
		}
		rows = append(rows, report.RunRow{Record: r, Summary: summary})
	}
	return rows, nil
}
