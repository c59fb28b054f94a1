package domain

// Outcome indicates how a simulated trade terminated.
type Outcome string

const (
	OutcomeTakeProfit Outcome = "TP"
	OutcomeStopLoss   Outcome = "SL"
	OutcomeStillOpen  Outcome = "Open" // No threshold crossed before the end of the series
)

// String returns the short label used in ledgers and chart markers.
func (o Outcome) String() string { return string(o) }

// TieBreak selects the outcome when a single bar crosses both thresholds.
type TieBreak string

const (
	TieBreakTakeProfit    TieBreak = "take_profit"    // Take-profit wins (default)
	TieBreakStopLoss      TieBreak = "stop_loss"      // Stop-loss wins
	TieBreakOpenProximity TieBreak = "open_proximity" // Extremum nearer the bar open is touched first
)

// ParseTieBreak converts a config string into a TieBreak. The second return
// value is false for unknown values.
func ParseTieBreak(s string) (TieBreak, bool) {
	switch TieBreak(s) {
	case "", TieBreakTakeProfit:
		return TieBreakTakeProfit, true
	case TieBreakStopLoss:
		return TieBreakStopLoss, true
	case TieBreakOpenProximity:
		return TieBreakOpenProximity, true
	default:
		return "", false
	}
}
