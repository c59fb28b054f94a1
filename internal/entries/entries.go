// Package entries turns free-form entry text into timestamps the simulator
// can price.
package entries

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"candleBacktest/internal/ports"
	"candleBacktest/internal/utils"
)

// Rejected is an input line that could not be read as a timestamp.
type Rejected struct {
	Line   int // 1-based line number
	Text   string
	Reason string
}

// Selection is the outcome of validating entry candidates against a series.
type Selection struct {
	Valid    []time.Time // Present in the series, input order and duplicates kept
	Missing  []time.Time // Parsed but with no bar at that exact timestamp
	Rejected []Rejected
}

// Parse reads one candidate per line. Blank lines are ignored.
func Parse(text string) ([]time.Time, []Rejected) {
	var (
		parsed   []time.Time
		rejected []Rejected
	)
	scanner := bufio.NewScanner(strings.NewReader(text))
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ts, err := utils.ParseTimestamp(line)
		if err != nil {
			rejected = append(rejected, Rejected{Line: n, Text: line, Reason: err.Error()})
			continue
		}
		parsed = append(parsed, ts)
	}
	return parsed, rejected
}

// Select parses text and keeps the candidates that name an existing bar.
func Select(ts ports.TimeSeries, text string) Selection {
	parsed, rejected := Parse(text)
	sel := Selection{Rejected: rejected}
	for _, e := range parsed {
		if _, ok := ts.PriceAt(e); ok {
			sel.Valid = append(sel.Valid, e)
		} else {
			sel.Missing = append(sel.Missing, e)
		}
	}
	return sel
}

// ReadFile loads entry text from disk.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read entries file %s: %w", path, err)
	}
	return string(data), nil
}
