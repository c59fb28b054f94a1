package domain

import "time"

// RunSummary aggregates a trade ledger. It is always derived from the ledger
// and never stored on its own.
type RunSummary struct {
	TotalTrades    int
	WinningTrades  int // PnL > 0
	LosingTrades   int // PnL < 0
	FlatTrades     int // PnL == 0
	TakeProfits    int
	StopLosses     int
	StillOpen      int
	TotalReturnPct float64 // Sum of all PnL %
	WinRatePct     float64 // 100 * WinningTrades / TotalTrades
	AvgPnLPct      float64
	StdDevPnLPct   float64 // Sample standard deviation, 0 with fewer than two trades
	BestPnLPct     float64
	WorstPnLPct    float64
	MaxDrawdownPct float64 // Largest peak-to-trough drop of the cumulative PnL % curve
}

// RunRecord is a persisted backtest run: its inputs and the resulting ledger.
type RunRecord struct {
	ID               int64
	CreatedAt        time.Time
	Params           ExitParameters
	TieBreak         TieBreak
	EntriesRequested int
	Trades           []Trade
}
