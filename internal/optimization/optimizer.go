// Package optimization sweeps a grid of take-profit/stop-loss percentages
// over one series and ranks the resulting runs.
package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"candleBacktest/internal/backtesting"
	"candleBacktest/internal/domain"
	"candleBacktest/internal/ports"
)

// ParameterRange defines an inclusive range for one threshold.
type ParameterRange struct {
	Min  float64
	Max  float64
	Step float64
}

func (r ParameterRange) validate(name string) error {
	if r.Step <= 0 || math.IsNaN(r.Step) || math.IsInf(r.Step, 0) {
		return fmt.Errorf("%s step must be positive, got %v: %w", name, r.Step, ports.ErrInvalidParameters)
	}
	if r.Min > r.Max {
		return fmt.Errorf("%s range is empty (%v > %v): %w", name, r.Min, r.Max, ports.ErrInvalidParameters)
	}
	return nil
}

// values enumerates the range. Each value is computed from Min rather than
// accumulated so float error does not drift across a long grid.
func (r ParameterRange) values() []float64 {
	var out []float64
	for i := 0; ; i++ {
		v := r.Min + float64(i)*r.Step
		if v > r.Max+r.Step*1e-9 { // Small epsilon for floating point comparison
			break
		}
		out = append(out, math.Round(v*1e6)/1e6)
	}
	return out
}

// OptimizationResult is one evaluated grid point.
type OptimizationResult struct {
	Params  domain.ExitParameters
	Summary domain.RunSummary
	Trades  int
}

// OptimizerConfig holds configuration for the optimizer.
type OptimizerConfig struct {
	TakeProfit ParameterRange
	StopLoss   ParameterRange
	TieBreak   domain.TieBreak
	Workers    int // Grid points evaluated concurrently
}

// Optimizer evaluates every TP×SL combination against a shared series.
type Optimizer struct {
	config    OptimizerConfig
	simulator *backtesting.Simulator
}

// NewOptimizer creates a new optimizer instance.
func NewOptimizer(config OptimizerConfig) *Optimizer {
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Optimizer{
		config:    config,
		simulator: backtesting.NewSimulator(backtesting.WithTieBreak(config.TieBreak)),
	}
}

// Combinations returns the grid in TP-major order.
func (o *Optimizer) Combinations() ([]domain.ExitParameters, error) {
	if err := o.config.TakeProfit.validate("take-profit"); err != nil {
		return nil, err
	}
	if err := o.config.StopLoss.validate("stop-loss"); err != nil {
		return nil, err
	}

	var combinations []domain.ExitParameters
	for _, tp := range o.config.TakeProfit.values() {
		for _, sl := range o.config.StopLoss.values() {
			combinations = append(combinations, domain.ExitParameters{TakeProfitPct: tp, StopLossPct: sl})
		}
	}
	return combinations, nil
}

// Optimize runs the full grid and returns results ranked best first. Every
// combination must be valid exit parameters; the first failure aborts the
// sweep.
func (o *Optimizer) Optimize(ctx context.Context, ts ports.TimeSeries, entries []time.Time) ([]OptimizationResult, error) {
	combinations, err := o.Combinations()
	if err != nil {
		return nil, err
	}
	for _, params := range combinations {
		if err := backtesting.ValidateParams(params); err != nil {
			return nil, err
		}
	}

	results := make([]OptimizationResult, len(combinations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Workers)

	for i, params := range combinations {
		g.Go(func() error {
			run, err := o.simulator.Run(gctx, ts, entries, params)
			if err != nil {
				return fmt.Errorf("sweep TP=%v SL=%v: %w", params.TakeProfitPct, params.StopLossPct, err)
			}
			summary, err := backtesting.Summarize(run.Trades)
			if err != nil && !errors.Is(err, ports.ErrEmptyData) {
				return err
			}
			results[i] = OptimizationResult{Params: params, Summary: summary, Trades: len(run.Trades)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortResults(results)
	return results, nil
}

// sortResults ranks by total return, then win rate, then the tighter TP and SL.
func sortResults(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Summary.TotalReturnPct != b.Summary.TotalReturnPct {
			return a.Summary.TotalReturnPct > b.Summary.TotalReturnPct
		}
		if a.Summary.WinRatePct != b.Summary.WinRatePct {
			return a.Summary.WinRatePct > b.Summary.WinRatePct
		}
		if a.Params.TakeProfitPct != b.Params.TakeProfitPct {
			return a.Params.TakeProfitPct < b.Params.TakeProfitPct
		}
		return a.Params.StopLossPct < b.Params.StopLossPct
	})
}
