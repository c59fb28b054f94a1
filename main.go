package main

import (
	"context"
	"flag"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"candleBacktest/config"
	"candleBacktest/internal/adapters/binanceclient"
	"candleBacktest/internal/adapters/csvsource"
	"candleBacktest/internal/adapters/logger"
	"candleBacktest/internal/adapters/parquetsource"
	"candleBacktest/internal/adapters/sqlite"
	"candleBacktest/internal/app"
	"candleBacktest/internal/entries"
	"candleBacktest/internal/ports"
	"candleBacktest/internal/report"
	"candleBacktest/internal/utils"
)

var (
	entriesFile = flag.String("entries", "", "file with one entry timestamp per line (overrides ENTRIES_FILE)")
	tpPct       = flag.Float64("tp", 0, "take-profit percent (overrides TAKE_PROFIT_PCT)")
	slPct       = flag.Float64("sl", 0, "stop-loss percent (overrides STOP_LOSS_PCT)")
	export      = flag.Bool("export", true, "write the ledger and chart markers as CSV to REPORT_DIR")
	live        = flag.Bool("binance", false, "also load SYMBOL/INTERVAL klines for the last FETCH_DAYS from Binance")
)

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if *entriesFile != "" {
		cfg.EntriesFile = *entriesFile
	}
	params := cfg.ExitParameters()
	if *tpPct != 0 {
		params.TakeProfitPct = *tpPct
	}
	if *slPct != 0 {
		params.StopLossPct = *slPct
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Bar sources
	var sources []ports.BarSource
	if cfg.DataGlob != "" {
		src, err := csvsource.New(csvsource.Config{Pattern: cfg.DataGlob, Workers: cfg.LoadWorkers, Logger: appLogger})
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize CSV source: %v", err)
		}
		sources = append(sources, src)
	}
	if cfg.ParquetGlob != "" {
		src, err := parquetsource.New(parquetsource.Config{Pattern: cfg.ParquetGlob, Workers: cfg.LoadWorkers, Logger: appLogger})
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize Parquet source: %v", err)
		}
		sources = append(sources, src)
	}
	if *live {
		client, err := binanceclient.New(binanceclient.Config{
			APIKey:     cfg.APIKey,
			SecretKey:  cfg.SecretKey,
			UseTestnet: cfg.IsTestnet,
			Logger:     appLogger,
		})
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
		}
		end := time.Now().UTC()
		sources = append(sources, binanceclient.NewKlineSource(client, cfg.Symbol, cfg.Interval, end.AddDate(0, 0, -cfg.FetchDays), end))
	}

	// 4. Run history
	var repo ports.RunRepository
	if cfg.PersistRuns {
		sqliteRepo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
		if err != nil {
			appLogger.Error(ctx, err, "Run history disabled: failed to open database")
		} else {
			defer sqliteRepo.Close()
			repo = sqliteRepo
		}
	}

	// 5. Service
	svc, err := app.NewBacktestService(appLogger, sources, repo, app.Options{TieBreak: cfg.TieBreak, ScanWorkers: cfg.ScanWorkers})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize backtest service: %v", err)
	}

	ds, err := svc.LoadSeries(ctx)
	if err != nil {
		log.Fatalf("FATAL: Failed to load bars: %v", err)
	}
	fmt.Println(report.LoadedLine(ds.Report.Sources, ds.Report.RowsRead))
	fmt.Println("\nData Preview")
	if err := report.WritePreview(os.Stdout, ds.Series.Tail(report.PreviewSize)); err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	// 6. Entries and run
	text, err := entries.ReadFile(cfg.EntriesFile)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	outcome, err := svc.Run(ctx, ds, text, params)
	if err != nil {
		log.Fatalf("FATAL: Backtest failed: %v", err)
	}

	fmt.Printf("\nValid entries found: %d\n", len(outcome.Selection.Valid))
	fmt.Printf("Take Profit: %g%%  Stop Loss: %g%%  Tie-break: %s\n\n", params.TakeProfitPct, params.StopLossPct, cfg.TieBreak)
	if len(outcome.Result.Trades) == 0 {
		fmt.Println("No trades.")
		return
	}
	if err := report.WriteLedger(os.Stdout, outcome.Result.Trades); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	fmt.Println()
	if err := report.WriteSummary(os.Stdout, outcome.Summary); err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	if *export {
		if err := exportRun(cfg.ReportDir, outcome); err != nil {
			appLogger.Error(ctx, err, "Failed to export run")
			os.Exit(1)
		}
	}
}

// exportRun writes the ledger and its chart markers next to each other.
func exportRun(dir string, outcome *app.RunOutcome) error {
	stamp := time.Now().UTC().Format("20060102_150405")
	if outcome.RunID != 0 {
		stamp = fmt.Sprintf("run%d_%s", outcome.RunID, stamp)
	}

	ledgerPath := filepath.Join(dir, fmt.Sprintf("trades_%s.csv", stamp))
	if err := utils.WriteTradesToCSV(outcome.Result.Trades, ledgerPath); err != nil {
		return err
	}

	markersPath := filepath.Join(dir, fmt.Sprintf("markers_%s.csv", stamp))
	f, err := os.Create(markersPath)
	if err != nil {
		return fmt.Errorf("failed to create '%s': %w", markersPath, err)
	}
	defer f.Close()
	if err := report.WriteMarkersCSV(f, report.Markers(outcome.Result.Trades)); err != nil {
		return err
	}

	fmt.Printf("\nSaved %s and %s\n", ledgerPath, markersPath)
	return nil
}
