package backtesting

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"candleBacktest/internal/domain"
	"candleBacktest/internal/ports"
)

// Summarize reduces a ledger to its run summary. An empty ledger has no
// meaningful win rate, so it returns a zero summary and ports.ErrEmptyData.
func Summarize(trades []domain.Trade) (domain.RunSummary, error) {
	if len(trades) == 0 {
		return domain.RunSummary{}, fmt.Errorf("cannot summarize an empty ledger: %w", ports.ErrEmptyData)
	}

	summary := domain.RunSummary{
		TotalTrades: len(trades),
		BestPnLPct:  trades[0].PnLPct,
		WorstPnLPct: trades[0].PnLPct,
	}
	pnls := make([]float64, len(trades))

	for i, t := range trades {
		pnls[i] = t.PnLPct
		summary.TotalReturnPct += t.PnLPct

		switch {
		case t.IsWin():
			summary.WinningTrades++
		case t.PnLPct < 0:
			summary.LosingTrades++
		default:
			summary.FlatTrades++
		}

		switch t.Outcome {
		case domain.OutcomeTakeProfit:
			summary.TakeProfits++
		case domain.OutcomeStopLoss:
			summary.StopLosses++
		case domain.OutcomeStillOpen:
			summary.StillOpen++
		}

		if t.PnLPct > summary.BestPnLPct {
			summary.BestPnLPct = t.PnLPct
		}
		if t.PnLPct < summary.WorstPnLPct {
			summary.WorstPnLPct = t.PnLPct
		}
	}

	summary.WinRatePct = 100 * float64(summary.WinningTrades) / float64(summary.TotalTrades)

	if len(pnls) > 1 {
		summary.AvgPnLPct, summary.StdDevPnLPct = stat.MeanStdDev(pnls, nil)
	} else {
		summary.AvgPnLPct = pnls[0]
	}
	summary.MaxDrawdownPct = maxDrawdown(pnls)

	return summary, nil
}

// maxDrawdown returns the largest drop of the cumulative PnL % curve from a
// running peak. The curve starts at zero before the first trade.
func maxDrawdown(pnls []float64) float64 {
	var cumulative, peak, worst float64
	for _, p := range pnls {
		cumulative += p
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > worst {
			worst = dd
		}
	}
	return worst
}
