package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"candleBacktest/internal/adapters/logger"
	"candleBacktest/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Data
	DataGlob    string // CSV files, e.g. historical/*.csv
	ParquetGlob string // Optional Parquet files, empty disables
	EntriesFile string
	LoadWorkers int

	// Exit parameters
	TakeProfitPct float64 // Percent, e.g. 10 for 10%
	StopLossPct   float64
	TieBreak      domain.TieBreak
	ScanWorkers   int

	// Persistence and output
	DBPath      string
	PersistRuns bool
	ReportDir   string

	// Logging
	LogLevel logger.LogLevel

	// Binance (klines are public, so keys are optional)
	APIKey    string
	SecretKey string
	IsTestnet bool
	Symbol    string
	Interval  string
	FetchDays int

	// Parameter sweep
	SweepTPMin   float64
	SweepTPMax   float64
	SweepTPStep  float64
	SweepSLMin   float64
	SweepSLMax   float64
	SweepSLStep  float64
	SweepWorkers int
}

// ExitParameters returns the configured thresholds.
func (c *Config) ExitParameters() domain.ExitParameters {
	return domain.ExitParameters{TakeProfitPct: c.TakeProfitPct, StopLossPct: c.StopLossPct}
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	// Data
	cfg.DataGlob = getEnv("DATA_GLOB", "historical/*.csv")
	cfg.ParquetGlob = getEnv("PARQUET_GLOB", "")
	cfg.EntriesFile = getEnv("ENTRIES_FILE", "entries.txt")
	cfg.LoadWorkers = getEnvAsInt("LOAD_WORKERS", 4)
	if cfg.LoadWorkers <= 0 {
		errs = append(errs, "LOAD_WORKERS must be positive")
	}

	// Exit parameters
	cfg.TakeProfitPct, err = getEnvAsFloatRequired("TAKE_PROFIT_PCT", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TAKE_PROFIT_PCT: %v", err))
	} else if !validPct(cfg.TakeProfitPct) {
		errs = append(errs, "TAKE_PROFIT_PCT must be in (0, 100]")
	}

	cfg.StopLossPct, err = getEnvAsFloatRequired("STOP_LOSS_PCT", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS_PCT: %v", err))
	} else if !validPct(cfg.StopLossPct) {
		errs = append(errs, "STOP_LOSS_PCT must be in (0, 100]")
	}

	tieBreak := getEnv("TIE_BREAK", string(domain.TieBreakTakeProfit))
	if tb, ok := domain.ParseTieBreak(tieBreak); ok {
		cfg.TieBreak = tb
	} else {
		errs = append(errs, fmt.Sprintf("TIE_BREAK must be one of take_profit, stop_loss, open_proximity (got '%s')", tieBreak))
	}

	cfg.ScanWorkers, err = getEnvAsIntRequired("SCAN_WORKERS", 1)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SCAN_WORKERS: %v", err))
	} else if cfg.ScanWorkers <= 0 {
		errs = append(errs, "SCAN_WORKERS must be positive")
	}

	// Persistence and output
	cfg.DBPath = getEnv("DB_PATH", "./data/backtests.db")
	cfg.PersistRuns = getEnvAsBool("PERSIST_RUNS", true)
	if cfg.PersistRuns && cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set when PERSIST_RUNS is enabled")
	}
	cfg.ReportDir = getEnv("REPORT_DIR", "./data")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	// Binance
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)
	cfg.Symbol = strings.ToUpper(getEnv("SYMBOL", "ETHUSDT"))
	cfg.Interval = getEnv("INTERVAL", "1h")
	cfg.FetchDays, err = getEnvAsIntRequired("FETCH_DAYS", 90)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid FETCH_DAYS: %v", err))
	} else if cfg.FetchDays <= 0 {
		errs = append(errs, "FETCH_DAYS must be positive")
	}

	// Parameter sweep
	sweep := []struct {
		key  string
		dst  *float64
		def  float64
		step bool
	}{
		{"SWEEP_TP_MIN", &cfg.SweepTPMin, 1, false},
		{"SWEEP_TP_MAX", &cfg.SweepTPMax, 50, false},
		{"SWEEP_TP_STEP", &cfg.SweepTPStep, 1, true},
		{"SWEEP_SL_MIN", &cfg.SweepSLMin, 1, false},
		{"SWEEP_SL_MAX", &cfg.SweepSLMax, 50, false},
		{"SWEEP_SL_STEP", &cfg.SweepSLStep, 1, true},
	}
	for _, s := range sweep {
		*s.dst, err = getEnvAsFloatRequired(s.key, s.def)
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("invalid %s: %v", s.key, err))
		case s.step && *s.dst <= 0:
			errs = append(errs, s.key+" must be positive")
		case !s.step && !validPct(*s.dst):
			errs = append(errs, s.key+" must be in (0, 100]")
		}
	}
	if cfg.SweepTPMin > cfg.SweepTPMax {
		errs = append(errs, "SWEEP_TP_MIN must not exceed SWEEP_TP_MAX")
	}
	if cfg.SweepSLMin > cfg.SweepSLMax {
		errs = append(errs, "SWEEP_SL_MIN must not exceed SWEEP_SL_MAX")
	}
	cfg.SweepWorkers = getEnvAsInt("SWEEP_WORKERS", 4)
	if cfg.SweepWorkers <= 0 {
		errs = append(errs, "SWEEP_WORKERS must be positive")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

func validPct(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0 && v <= 100
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
