package report

import (
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"

	"candleBacktest/internal/domain"
	"candleBacktest/internal/utils"
)

// MarkerKind tells entry and exit markers apart.
type MarkerKind string

const (
	MarkerEntry MarkerKind = "Entry"
	MarkerExit  MarkerKind = "Exit"
)

// Marker colors used by chart overlays.
const (
	ColorEntry = "green"
	ColorExit  = "red"
)

// Marker is a single annotated point to overlay on a candlestick chart.
type Marker struct {
	Time  time.Time
	Price float64
	Kind  MarkerKind
	Color string
	Label string
}

// Markers derives two markers per trade: the entry labelled "Entry" and the
// exit labelled with the outcome.
func Markers(trades []domain.Trade) []Marker {
	out := make([]Marker, 0, 2*len(trades))
	for _, t := range trades {
		out = append(out,
			Marker{Time: t.EntryTime, Price: t.EntryPrice, Kind: MarkerEntry, Color: ColorEntry, Label: "Entry"},
			Marker{Time: t.ExitTime, Price: t.ExitPrice, Kind: MarkerExit, Color: ColorExit, Label: t.Outcome.String()},
		)
	}
	return out
}

type markerRecord struct {
	Time  string `csv:"time"`
	Price string `csv:"price"`
	Kind  string `csv:"kind"`
	Color string `csv:"color"`
	Label string `csv:"label"`
}

// WriteMarkersCSV exports markers as CSV.
func WriteMarkersCSV(w io.Writer, markers []Marker) error {
	records := make([]*markerRecord, 0, len(markers))
	for _, m := range markers {
		records = append(records, &markerRecord{
			Time:  utils.FormatTimestamp(m.Time),
			Price: utils.FormatFloat(m.Price),
			Kind:  string(m.Kind),
			Color: m.Color,
			Label: m.Label,
		})
	}
	if err := gocsv.Marshal(&records, w); err != nil {
		return fmt.Errorf("failed to write markers: %w", err)
	}
	return nil
}
