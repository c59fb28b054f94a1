package domain

import "time"

// Trade is the simulated result of one entry.
type Trade struct {
	EntryTime  time.Time // Timestamp of the entry bar
	EntryPrice float64   // Close of the entry bar
	ExitTime   time.Time // Timestamp of the bar that triggered the exit (or the last bar)
	ExitPrice  float64   // Threshold price, or the last close when still open
	Outcome    Outcome   // TP, SL or Open
	PnLPct     float64   // (ExitPrice - EntryPrice) / EntryPrice * 100
}

// IsWin reports whether the trade closed with a strictly positive PnL.
func (t Trade) IsWin() bool {
	return t.PnLPct > 0
}
