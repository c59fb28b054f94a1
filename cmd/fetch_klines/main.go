package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"candleBacktest/config"
	"candleBacktest/internal/adapters/binanceclient"
	"candleBacktest/internal/adapters/logger"
	"candleBacktest/internal/utils"
)

var outDir = flag.String("out", "", "output directory (defaults to the directory of DATA_GLOB)")

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	if err := binanceClient.Ping(ctx); err != nil {
		log.Fatalf("FATAL: Binance is unreachable: %v", err)
	}

	end, err := binanceClient.GetServerTime(ctx)
	if err != nil {
		appLogger.Warn(ctx, "Falling back to local clock", map[string]interface{}{"error": err.Error()})
		end = time.Now().UTC()
	}
	start := end.AddDate(0, 0, -cfg.FetchDays)

	fmt.Printf("Fetching klines for %s %s from %s to %s...\n", cfg.Symbol, cfg.Interval, start.Format(time.RFC3339), end.Format(time.RFC3339))
	rows, err := binanceClient.GetKlinesRange(ctx, cfg.Symbol, cfg.Interval, start, end)
	if err != nil {
		log.Fatalf("Error fetching klines: %v", err)
	}
	if len(rows) == 0 {
		appLogger.Warn(ctx, "Exchange returned no klines", map[string]interface{}{"symbol": cfg.Symbol, "interval": cfg.Interval})
		os.Exit(1)
	}
	appLogger.Info(ctx, "Fetched klines", map[string]interface{}{"count": len(rows)})

	dir := *outDir
	if dir == "" {
		dir = filepath.Dir(cfg.DataGlob)
	}
	filename := filepath.Join(dir, fmt.Sprintf("%s_%s_%s_to_%s.csv", cfg.Symbol, cfg.Interval, start.Format("20060102"), end.Format("20060102")))
	if err := utils.WriteRowsToCSV(rows, filename); err != nil {
		log.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(ctx, "Saved klines", map[string]interface{}{"filename": filename})
}
