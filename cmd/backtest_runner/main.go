package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"candleBacktest/config"
	"candleBacktest/internal/adapters/csvsource"
	"candleBacktest/internal/adapters/logger"
	"candleBacktest/internal/adapters/parquetsource"
	"candleBacktest/internal/app"
	"candleBacktest/internal/entries"
	"candleBacktest/internal/optimization"
	"candleBacktest/internal/ports"
	"candleBacktest/internal/report"
)

var top = flag.Int("top", 20, "number of ranked combinations to print (0 prints all)")

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Load bars once; every combination shares the same immutable series
	var sources []ports.BarSource
	if cfg.DataGlob != "" {
		src, err := csvsource.New(csvsource.Config{Pattern: cfg.DataGlob, Workers: cfg.LoadWorkers, Logger: appLogger})
		if err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		sources = append(sources, src)
	}
	if cfg.ParquetGlob != "" {
		src, err := parquetsource.New(parquetsource.Config{Pattern: cfg.ParquetGlob, Workers: cfg.LoadWorkers, Logger: appLogger})
		if err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		sources = append(sources, src)
	}

	svc, err := app.NewBacktestService(appLogger, sources, nil, app.Options{TieBreak: cfg.TieBreak, ScanWorkers: cfg.ScanWorkers})
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	ds, err := svc.LoadSeries(ctx)
	if err != nil {
		log.Fatalf("FATAL: Failed to load bars: %v", err)
	}
	text, err := entries.ReadFile(cfg.EntriesFile)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	// 3. Sweep
	results, err := svc.Sweep(ctx, ds, text, optimization.OptimizerConfig{
		TakeProfit: optimization.ParameterRange{Min: cfg.SweepTPMin, Max: cfg.SweepTPMax, Step: cfg.SweepTPStep},
		StopLoss:   optimization.ParameterRange{Min: cfg.SweepSLMin, Max: cfg.SweepSLMax, Step: cfg.SweepSLStep},
		TieBreak:   cfg.TieBreak,
		Workers:    cfg.SweepWorkers,
	})
	if err != nil {
		log.Fatalf("FATAL: Parameter sweep failed: %v", err)
	}

	fmt.Println(report.LoadedLine(ds.Report.Sources, ds.Report.RowsRead))
	fmt.Printf("Evaluated %d TP/SL combinations\n\n", len(results))
	if err := report.WriteRanking(os.Stdout, results, *top); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}
