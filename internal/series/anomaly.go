package series

import (
	"fmt"

	"candleBacktest/internal/domain"
)

// Anomaly flags a bar that breaks the OHLC invariants. Flagged bars are kept
// in the series exactly as received.
type Anomaly struct {
	Bar    domain.Bar
	Reason string
}

// Anomalies audits every bar for low > high, non-positive prices, negative
// volume, and open/close outside [low, high].
func (s *Series) Anomalies() []Anomaly {
	var out []Anomaly
	for _, b := range s.bars {
		switch {
		case b.Low > b.High:
			out = append(out, Anomaly{Bar: b, Reason: fmt.Sprintf("low %v above high %v", b.Low, b.High)})
		case b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0:
			out = append(out, Anomaly{Bar: b, Reason: "non-positive price"})
		case b.Volume < 0:
			out = append(out, Anomaly{Bar: b, Reason: "negative volume"})
		case b.Open < b.Low || b.Open > b.High || b.Close < b.Low || b.Close > b.High:
			out = append(out, Anomaly{Bar: b, Reason: "open or close outside low/high range"})
		}
	}
	return out
}
