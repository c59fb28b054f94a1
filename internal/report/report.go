// Package report renders backtest results for terminals and exports them for
// charting tools. It only reads the ledger; nothing here feeds back into a run.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"candleBacktest/internal/domain"
	"candleBacktest/internal/optimization"
	"candleBacktest/internal/utils"
)

// PreviewSize is how many trailing bars the data preview shows.
const PreviewSize = 5

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
}

// LoadedLine reports how much data was ingested.
func LoadedLine(files, rows int) string {
	return fmt.Sprintf("Loaded %d files with %d total rows.", files, rows)
}

// WritePreview prints the given bars as a small table.
func WritePreview(w io.Writer, bars []domain.Bar) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "Date\tOpen\tHigh\tLow\tClose\tVolume\t")
	for _, b := range bars {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t\n",
			utils.FormatTimestamp(b.Timestamp), b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	return tw.Flush()
}

// WriteLedger prints one row per trade in ledger order.
func WriteLedger(w io.Writer, trades []domain.Trade) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "Entry Date\tEntry Price\tExit Date\tExit Price\tResult\tPnL %\t")
	for _, t := range trades {
		fmt.Fprintf(tw, "%s\t%.4f\t%s\t%.4f\t%s\t%.2f\t\n",
			utils.FormatTimestamp(t.EntryTime),
			t.EntryPrice,
			utils.FormatTimestamp(t.ExitTime),
			t.ExitPrice,
			t.Outcome,
			t.PnLPct,
		)
	}
	return tw.Flush()
}

// WriteSummary prints the headline figures followed by the extended statistics.
func WriteSummary(w io.Writer, s domain.RunSummary) error {
	_, err := fmt.Fprintf(w,
		"Total Return: %.2f%%\n"+
			"Win Rate: %.2f%%\n"+
			"Trades: %d (TP %d, SL %d, Open %d)\n"+
			"Wins/Losses/Flat: %d/%d/%d\n"+
			"Avg PnL: %.2f%% (std %.2f%%)\n"+
			"Best/Worst: %.2f%% / %.2f%%\n"+
			"Max Drawdown: %.2f%%\n",
		s.TotalReturnPct,
		s.WinRatePct,
		s.TotalTrades, s.TakeProfits, s.StopLosses, s.StillOpen,
		s.WinningTrades, s.LosingTrades, s.FlatTrades,
		s.AvgPnLPct, s.StdDevPnLPct,
		s.BestPnLPct, s.WorstPnLPct,
		s.MaxDrawdownPct,
	)
	return err
}

// WriteRanking prints the top n sweep results; n <= 0 prints all of them.
func WriteRanking(w io.Writer, results []optimization.OptimizationResult, n int) error {
	if n <= 0 || n > len(results) {
		n = len(results)
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "Rank\tTP%\tSL%\tTrades\tTotal Return %\tWin Rate %\tMax DD %\t")
	for i, r := range results[:n] {
		fmt.Fprintf(tw, "%d\t%g\t%g\t%d\t%.2f\t%.2f\t%.2f\t\n",
			i+1,
			r.Params.TakeProfitPct,
			r.Params.StopLossPct,
			r.Trades,
			r.Summary.TotalReturnPct,
			r.Summary.WinRatePct,
			r.Summary.MaxDrawdownPct,
		)
	}
	return tw.Flush()
}

// RunRow is one line of the run history table.
type RunRow struct {
	Record  *domain.RunRecord
	Summary domain.RunSummary
}

// WriteRuns prints stored runs with their recomputed summaries.
func WriteRuns(w io.Writer, rows []RunRow) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tCreated\tTP%\tSL%\tTie-break\tEntries\tTrades\tTotal Return %\tWin Rate %\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%g\t%g\t%s\t%d\t%d\t%.2f\t%.2f\t\n",
			r.Record.ID,
			utils.FormatTimestamp(r.Record.CreatedAt),
			r.Record.Params.TakeProfitPct,
			r.Record.Params.StopLossPct,
			r.Record.TieBreak,
			r.Record.EntriesRequested,
			len(r.Record.Trades),
			r.Summary.TotalReturnPct,
			r.Summary.WinRatePct,
		)
	}
	return tw.Flush()
}
