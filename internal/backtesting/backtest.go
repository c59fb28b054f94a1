// Package backtesting simulates a take-profit/stop-loss exit policy forward
// from a list of entry timestamps and aggregates the resulting trade ledger.
//
// Each entry is scanned linearly from its own bar to the end of the series,
// so a run costs O(entries × series length) in the worst case.
package backtesting

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"candleBacktest/internal/domain"
	"candleBacktest/internal/ports"
)

// Result holds the trade ledger of one run and the entries it could not price.
type Result struct {
	Params   domain.ExitParameters
	TieBreak domain.TieBreak
	Trades   []domain.Trade // One per priced entry, in input order
	Skipped  []time.Time    // Entries with no bar at exactly that timestamp
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithTieBreak selects the outcome when one bar crosses both thresholds.
func WithTieBreak(tb domain.TieBreak) Option {
	return func(s *Simulator) {
		s.tieBreak = tb
	}
}

// WithWorkers scans up to n entries concurrently. Values below 2 keep the
// scan sequential.
func WithWorkers(n int) Option {
	return func(s *Simulator) {
		s.workers = n
	}
}

// Simulator runs the forward exit scan. It holds no state between runs and
// may be shared by concurrent callers.
type Simulator struct {
	tieBreak domain.TieBreak
	workers  int
}

// NewSimulator creates a simulator; by default take-profit wins ties and the
// scan is sequential.
func NewSimulator(opts ...Option) *Simulator {
	s := &Simulator{tieBreak: domain.TieBreakTakeProfit, workers: 1}
	for _, opt := range opts {
		opt(s)
	}
	if _, ok := domain.ParseTieBreak(string(s.tieBreak)); !ok {
		s.tieBreak = domain.TieBreakTakeProfit
	}
	return s
}

// Run simulates every entry against the series with the default simulator.
func Run(ctx context.Context, ts ports.TimeSeries, entries []time.Time, params domain.ExitParameters) (*Result, error) {
	return NewSimulator().Run(ctx, ts, entries, params)
}

// ValidateParams checks that both thresholds are finite percentages in (0, 100].
func ValidateParams(params domain.ExitParameters) error {
	check := func(name string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 || v > 100 {
			return fmt.Errorf("%s must be in (0, 100], got %v: %w", name, v, ports.ErrInvalidParameters)
		}
		return nil
	}
	if err := check("take-profit %", params.TakeProfitPct); err != nil {
		return err
	}
	return check("stop-loss %", params.StopLossPct)
}

// Run simulates every entry in order. Entries without a bar at exactly their
// timestamp are skipped, never fatal. The result depends only on the inputs.
func (s *Simulator) Run(ctx context.Context, ts ports.TimeSeries, entries []time.Time, params domain.ExitParameters) (*Result, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}
	last, err := ts.LastBar()
	if err != nil {
		return nil, fmt.Errorf("cannot run backtest: %w", err)
	}

	result := &Result{Params: params, TieBreak: s.tieBreak}
	entryBars := make([]domain.Bar, 0, len(entries))
	for _, e := range entries {
		bar, ok := ts.PriceAt(e)
		if !ok {
			result.Skipped = append(result.Skipped, e)
			continue
		}
		entryBars = append(entryBars, bar)
	}

	trades := make([]domain.Trade, len(entryBars))
	if s.workers < 2 || len(entryBars) < 2 {
		for i, bar := range entryBars {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			trades[i] = s.scan(ts, bar, last, params)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for i, bar := range entryBars {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				// Each goroutine owns exactly one slot, which keeps input order.
				trades[i] = s.scan(ts, bar, last, params)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	result.Trades = trades
	return result, nil
}

// scan walks forward from the entry bar (inclusive) until a threshold is
// crossed, falling back to the last bar of the series.
func (s *Simulator) scan(ts ports.TimeSeries, entry, last domain.Bar, params domain.ExitParameters) domain.Trade {
	entryPrice := entry.Close
	tpPrice := params.TakeProfitPrice(entryPrice)
	slPrice := params.StopLossPrice(entryPrice)

	for bar := range ts.ForwardSlice(entry.Timestamp) {
		switch s.firstTouch(bar, tpPrice, slPrice) {
		case domain.OutcomeTakeProfit:
			return newTrade(entry, bar.Timestamp, tpPrice, domain.OutcomeTakeProfit)
		case domain.OutcomeStopLoss:
			return newTrade(entry, bar.Timestamp, slPrice, domain.OutcomeStopLoss)
		}
	}
	return newTrade(entry, last.Timestamp, last.Close, domain.OutcomeStillOpen)
}

// firstTouch returns the threshold crossed by the bar's high/low, or an empty
// outcome when neither is.
func (s *Simulator) firstTouch(bar domain.Bar, tpPrice, slPrice float64) domain.Outcome {
	hitTP := bar.High >= tpPrice
	hitSL := bar.Low <= slPrice

	switch {
	case hitTP && hitSL:
		return s.resolveTie(bar)
	case hitTP:
		return domain.OutcomeTakeProfit
	case hitSL:
		return domain.OutcomeStopLoss
	default:
		return ""
	}
}

func (s *Simulator) resolveTie(bar domain.Bar) domain.Outcome {
	switch s.tieBreak {
	case domain.TieBreakStopLoss:
		return domain.OutcomeStopLoss
	case domain.TieBreakOpenProximity:
		// The extremum nearer the open is assumed to print first.
		if math.Abs(bar.Open-bar.Low) < math.Abs(bar.High-bar.Open) {
			return domain.OutcomeStopLoss
		}
		return domain.OutcomeTakeProfit
	default:
		return domain.OutcomeTakeProfit
	}
}

func newTrade(entry domain.Bar, exitTime time.Time, exitPrice float64, outcome domain.Outcome) domain.Trade {
	return domain.Trade{
		EntryTime:  entry.Timestamp,
		EntryPrice: entry.Close,
		ExitTime:   exitTime,
		ExitPrice:  exitPrice,
		Outcome:    outcome,
		PnLPct:     calculatePnLPct(entry.Close, exitPrice),
	}
}

// calculatePnLPct returns the percentage move from entry to exit.
func calculatePnLPct(entryPrice, exitPrice float64) float64 {
	return (exitPrice - entryPrice) / entryPrice * 100
}
