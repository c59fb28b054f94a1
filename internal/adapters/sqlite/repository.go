// Package sqlite stores backtest run history in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"candleBacktest/internal/domain"
	"candleBacktest/internal/ports"
)

var _ ports.RunRepository = (*Repository)(nil)

// Repository implements ports.RunRepository using SQLite. Timestamps are
// stored as milliseconds since epoch so they round-trip exactly in UTC.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository opens (creating if needed) the database and its schema.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/backtests.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single connection serializes writers; SQLite would otherwise return SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite run history ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS backtest_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at INTEGER NOT NULL,
		take_profit_pct REAL NOT NULL,
		stop_loss_pct REAL NOT NULL,
		tie_break TEXT NOT NULL,
		entries_requested INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES backtest_runs (id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		entry_time INTEGER NOT NULL,
		entry_price REAL NOT NULL,
		exit_time INTEGER NOT NULL,
		exit_price REAL NOT NULL,
		outcome TEXT NOT NULL,
		pnl_pct REAL NOT NULL,
		UNIQUE (run_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_backtest_runs_created_at ON backtest_runs (created_at);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Debug(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// SaveRun stores the run and its ledger in one transaction and sets run.ID.
func (r *Repository) SaveRun(ctx context.Context, run *domain.RunRecord) (int64, error) {
	if run == nil {
		return 0, fmt.Errorf("run is nil: %w", ports.ErrInvalidRequest)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w: %w", ports.ErrQueryFailed, err)
	}
	defer tx.Rollback() // No-op once committed

	result, err := tx.ExecContext(ctx, `
	INSERT INTO backtest_runs (created_at, take_profit_pct, stop_loss_pct, tie_break, entries_requested)
	VALUES (?, ?, ?, ?, ?)`,
		run.CreatedAt.UnixMilli(), run.Params.TakeProfitPct, run.Params.StopLossPct, string(run.TieBreak), run.EntriesRequested)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w: %w", ports.ErrQueryFailed, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO run_trades (run_id, seq, entry_time, entry_price, exit_time, exit_price, outcome, pnl_pct)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare trade insert: %w: %w", ports.ErrQueryFailed, err)
	}
	defer stmt.Close()

	for i, t := range run.Trades {
		if _, err := stmt.ExecContext(ctx, id, i,
			t.EntryTime.UnixMilli(), t.EntryPrice, t.ExitTime.UnixMilli(), t.ExitPrice, string(t.Outcome), t.PnLPct); err != nil {
			return 0, fmt.Errorf("failed to insert trade %d of run %d: %w: %w", i, id, ports.ErrQueryFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run %d: %w: %w", id, ports.ErrQueryFailed, err)
	}

	run.ID = id
	r.logger.Debug(ctx, "Run saved", map[string]interface{}{"runID": id, "trades": len(run.Trades)})
	return id, nil
}

// FindRun retrieves a run and its ledger. Returns nil, nil if not found.
func (r *Repository) FindRun(ctx context.Context, id int64) (*domain.RunRecord, error) {
	const query = `
	SELECT id, created_at, take_profit_pct, stop_loss_pct, tie_break, entries_requested
	FROM backtest_runs
	WHERE id = ?`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Run not found by ID", map[string]interface{}{"runID": id})
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query run %d: %w", id, err)
	}

	if run.Trades, err = r.loadTrades(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs with their ledgers, newest first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]*domain.RunRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d: %w", limit, ports.ErrInvalidRequest)
	}
	const query = `
	SELECT id, created_at, take_profit_pct, stop_loss_pct, tie_break, entries_requested
	FROM backtest_runs
	ORDER BY created_at DESC, id DESC
	LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	runs := make([]*domain.RunRecord, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan run during ListRuns: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	// The pool holds one connection, so the cursor must be released before
	// the ledgers are queried.
	rows.Close()

	for _, run := range runs {
		if run.Trades, err = r.loadTrades(ctx, run.ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (r *Repository) loadTrades(ctx context.Context, runID int64) ([]domain.Trade, error) {
	const query = `
	SELECT entry_time, entry_price, exit_time, exit_price, outcome, pnl_pct
	FROM run_trades
	WHERE run_id = ?
	ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades of run %d: %w", runID, err)
	}
	defer rows.Close()

	trades := make([]domain.Trade, 0)
	for rows.Next() {
		var (
			t               domain.Trade
			entryMs, exitMs int64
			outcome         string
		)
		if err := rows.Scan(&entryMs, &t.EntryPrice, &exitMs, &t.ExitPrice, &outcome, &t.PnLPct); err != nil {
			return nil, fmt.Errorf("failed to scan trade of run %d: %w", runID, err)
		}
		t.EntryTime = time.UnixMilli(entryMs).UTC()
		t.ExitTime = time.UnixMilli(exitMs).UTC()
		t.Outcome = domain.Outcome(outcome)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*domain.RunRecord, error) {
	run := &domain.RunRecord{}
	var createdMs int64
	var tieBreak string
	err := s.Scan(&run.ID, &createdMs, &run.Params.TakeProfitPct, &run.Params.StopLossPct, &tieBreak, &run.EntriesRequested)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	run.CreatedAt = time.UnixMilli(createdMs).UTC()
	run.TieBreak = domain.TieBreak(tieBreak)
	return run, nil
}
