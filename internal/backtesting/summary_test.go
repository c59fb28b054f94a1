package backtesting

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candleBacktest/internal/domain"
	"candleBacktest/internal/ports"
)

func ledgerOf(outcomes []domain.Outcome, pnls ...float64) []domain.Trade {
	out := make([]domain.Trade, len(pnls))
	for i, p := range pnls {
		out[i] = domain.Trade{Outcome: outcomes[i], PnLPct: p}
	}
	return out
}

func TestSummarize(t *testing.T) {
	ledger := ledgerOf(
		[]domain.Outcome{domain.OutcomeTakeProfit, domain.OutcomeStopLoss, domain.OutcomeStillOpen, domain.OutcomeTakeProfit},
		10, -5, 0, 10,
	)

	summary, err := Summarize(ledger)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.TotalTrades)
	assert.Equal(t, 2, summary.WinningTrades)
	assert.Equal(t, 1, summary.LosingTrades)
	assert.Equal(t, 1, summary.FlatTrades)
	assert.Equal(t, 2, summary.TakeProfits)
	assert.Equal(t, 1, summary.StopLosses)
	assert.Equal(t, 1, summary.StillOpen)
	assert.InDelta(t, 15.0, summary.TotalReturnPct, 1e-9)
	assert.InDelta(t, 50.0, summary.WinRatePct, 1e-9)
	assert.InDelta(t, 3.75, summary.AvgPnLPct, 1e-9)
	// Sample standard deviation of {10, -5, 0, 10}.
	assert.InDelta(t, 7.5, summary.StdDevPnLPct, 1e-9)
	assert.Equal(t, 10.0, summary.BestPnLPct)
	assert.Equal(t, -5.0, summary.WorstPnLPct)
	assert.InDelta(t, 5.0, summary.MaxDrawdownPct, 1e-9)
}

func TestSummarize_FlatTradeIsNotAWin(t *testing.T) {
	summary, err := Summarize(ledgerOf([]domain.Outcome{domain.OutcomeStillOpen}, 0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, summary.WinRatePct)
	assert.Equal(t, 0.0, summary.StdDevPnLPct)
	assert.Equal(t, 1, summary.FlatTrades)
}

func TestSummarize_SingleTrade(t *testing.T) {
	summary, err := Summarize(ledgerOf([]domain.Outcome{domain.OutcomeTakeProfit}, 10))
	require.NoError(t, err)
	assert.Equal(t, 100.0, summary.WinRatePct)
	assert.Equal(t, 10.0, summary.AvgPnLPct)
	assert.Equal(t, 0.0, summary.MaxDrawdownPct)
}

func TestSummarize_EmptyLedger(t *testing.T) {
	summary, err := Summarize(nil)
	assert.True(t, errors.Is(err, ports.ErrEmptyData))
	assert.Equal(t, domain.RunSummary{}, summary)
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name string
		pnls []float64
		want float64
	}{
		{name: "empty", want: 0},
		{name: "only gains", pnls: []float64{1, 2, 3}, want: 0},
		{name: "losses from the start", pnls: []float64{-2, -3}, want: 5},
		{name: "recovers then falls deeper", pnls: []float64{5, -3, 4, -8, 1}, want: 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, maxDrawdown(tt.pnls), 1e-9)
		})
	}
}
