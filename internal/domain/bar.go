package domain

import "time"

// Bar represents a single OHLCV candle keyed by its open time.
type Bar struct {
	Timestamp time.Time // Candle open time (UTC)
	Open      float64   // Opening price
	High      float64   // Highest price
	Low       float64   // Lowest price
	Close     float64   // Closing price
	Volume    float64   // Traded volume
}

// RawRow is one un-normalized input row as handed over by an ingestion adapter.
// Timestamp is either milliseconds since epoch or ISO-like text.
type RawRow struct {
	Timestamp string
	Open      string
	High      string
	Low       string
	Close     string
	Volume    string
}

// RawSource is a named batch of raw rows (a file, an API response, ...).
type RawSource struct {
	Name string
	Rows []RawRow
}
