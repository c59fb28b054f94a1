package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gocarina/gocsv"

	"candleBacktest/internal/domain"
)

// klineRecord is the on-disk layout of fetched klines. The open_time column
// holds milliseconds since epoch, matching exchange exports.
type klineRecord struct {
	OpenTime string `csv:"open_time"`
	Open     string `csv:"open"`
	High     string `csv:"high"`
	Low      string `csv:"low"`
	Close    string `csv:"close"`
	Volume   string `csv:"volume"`
}

// tradeRecord is the on-disk layout of an exported trade ledger.
type tradeRecord struct {
	EntryDate  string `csv:"entry_date"`
	EntryPrice string `csv:"entry_price"`
	ExitDate   string `csv:"exit_date"`
	ExitPrice  string `csv:"exit_price"`
	Result     string `csv:"result"`
	PnLPct     string `csv:"pnl_pct"`
}

// WriteRowsToCSV writes raw kline rows in the ingestion format.
func WriteRowsToCSV(rows []domain.RawRow, filename string) error {
	records := make([]*klineRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, &klineRecord{
			OpenTime: r.Timestamp,
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			Volume:   r.Volume,
		})
	}
	return marshalToFile(&records, filename)
}

// WriteTradesToCSV exports a trade ledger.
func WriteTradesToCSV(trades []domain.Trade, filename string) error {
	records := make([]*tradeRecord, 0, len(trades))
	for _, t := range trades {
		records = append(records, &tradeRecord{
			EntryDate:  FormatTimestamp(t.EntryTime),
			EntryPrice: FormatFloat(t.EntryPrice),
			ExitDate:   FormatTimestamp(t.ExitTime),
			ExitPrice:  FormatFloat(t.ExitPrice),
			Result:     t.Outcome.String(),
			PnLPct:     FormatFloat(t.PnLPct),
		})
	}
	return marshalToFile(&records, filename)
}

// FormatFloat renders a float with the shortest exact representation.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func marshalToFile(records interface{}, filename string) error {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory '%s': %w", dir, err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create '%s': %w", filename, err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(records, file); err != nil {
		return fmt.Errorf("failed to write CSV '%s': %w", filename, err)
	}
	return nil
}
