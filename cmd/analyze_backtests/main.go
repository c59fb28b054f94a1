package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"candleBacktest/config"
	"candleBacktest/internal/adapters/logger"
	"candleBacktest/internal/adapters/sqlite"
	"candleBacktest/internal/app"
	"candleBacktest/internal/backtesting"
	"candleBacktest/internal/ports"
	"candleBacktest/internal/report"
)

var (
	limit = flag.Int("limit", 20, "number of recent runs to list")
	runID = flag.Int64("id", 0, "print the full ledger of one run")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to open run history: %v", err)
	}
	defer repo.Close()

	if *runID != 0 {
		if err := printRun(ctx, repo, *runID); err != nil {
			log.Fatalf("Error: %v", err)
		}
		return
	}

	svc, err := app.NewBacktestService(appLogger, nil, repo, app.Options{TieBreak: cfg.TieBreak})
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	rows, err := svc.History(ctx, *limit)
	if err != nil {
		log.Fatalf("Error listing runs: %v", err)
	}
	if len(rows) == 0 {
		log.Println("No stored runs found. Run the backtester first.")
		return
	}
	if err := report.WriteRuns(os.Stdout, rows); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// printRun shows one stored run with its summary recomputed from the ledger.
func printRun(ctx context.Context, repo *sqlite.Repository, id int64) error {
	run, err := repo.FindRun(ctx, id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %d: %w", id, ports.ErrNotFound)
	}

	fmt.Printf("Run %d  TP %g%%  SL %g%%  tie-break %s  entries %d\n\n",
		run.ID, run.Params.TakeProfitPct, run.Params.StopLossPct, run.TieBreak, run.EntriesRequested)
	if len(run.Trades) == 0 {
		fmt.Println("No trades.")
		return nil
	}
	if err := report.WriteLedger(os.Stdout, run.Trades); err != nil {
		return err
	}
	summary, err := backtesting.Summarize(run.Trades)
	if err != nil {
		return err
	}
	fmt.Println()
	return report.WriteSummary(os.Stdout, summary)
}
