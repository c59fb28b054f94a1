package domain

// ExitParameters are the symmetric percentage thresholds of one run.
// Both values are percentages in (0, 100], e.g. 10 means 10%.
type ExitParameters struct {
	TakeProfitPct float64
	StopLossPct   float64
}

// TakeProfitPrice returns the take-profit trigger for the given entry price.
func (p ExitParameters) TakeProfitPrice(entryPrice float64) float64 {
	return entryPrice * (1 + p.TakeProfitPct/100)
}

// StopLossPrice returns the stop-loss trigger for the given entry price.
func (p ExitParameters) StopLossPrice(entryPrice float64) float64 {
	return entryPrice * (1 - p.StopLossPct/100)
}
