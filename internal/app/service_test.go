package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candleBacktest/internal/adapters/csvsource"
	"candleBacktest/internal/domain"
	"candleBacktest/internal/optimization"
	"candleBacktest/internal/ports"
)

// Mock implementations
type mockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

type mockSource struct {
	name    string
	sources []domain.RawSource
	err     error
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) Load(ctx context.Context) ([]domain.RawSource, error) {
	return m.sources, m.err
}

type mockRunRepo struct {
	runs    []*domain.RunRecord
	saveErr error
}

func (m *mockRunRepo) SaveRun(ctx context.Context, run *domain.RunRecord) (int64, error) {
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	run.ID = int64(len(m.runs) + 1)
	m.runs = append(m.runs, run)
	return run.ID, nil
}

func (m *mockRunRepo) FindRun(ctx context.Context, id int64) (*domain.RunRecord, error) {
	for _, r := range m.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockRunRepo) ListRuns(ctx context.Context, limit int) ([]*domain.RunRecord, error) {
	out := make([]*domain.RunRecord, 0, limit)
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

// scenarioSource serves the three reference bars split over two files,
// plus one malformed row and one duplicate.
func scenarioSource() *mockSource {
	return &mockSource{name: "mock", sources: []domain.RawSource{
		{Name: "a.csv", Rows: []domain.RawRow{
			{Timestamp: "2024-06-14 12:00:00", Open: "100", High: "105", Low: "95", Close: "100", Volume: "1"},
			{Timestamp: "2024-06-14 13:00:00", Open: "1", High: "1", Low: "1", Close: "1", Volume: "1"},
			{Timestamp: "2024-06-14 14:00:00", Open: "110", High: "abc", Low: "108", Close: "109", Volume: "1"},
		}},
		{Name: "b.csv", Rows: []domain.RawRow{
			{Timestamp: "1718370000000", Open: "100", High: "112", Low: "99", Close: "110", Volume: "1"},
			{Timestamp: "1718373600000", Open: "110", High: "111", Low: "108", Close: "109", Volume: "1"},
		}},
	}}
}

func newService(t *testing.T, repo ports.RunRepository, sources ...ports.BarSource) (*BacktestService, *mockLogger) {
	t.Helper()
	logger := &mockLogger{}
	svc, err := NewBacktestService(logger, sources, repo, Options{})
	require.NoError(t, err)
	return svc, logger
}

func TestNewBacktestService(t *testing.T) {
	_, err := NewBacktestService(nil, nil, nil, Options{})
	assert.Error(t, err)

	_, err = NewBacktestService(&mockLogger{}, nil, nil, Options{TieBreak: "sideways"})
	assert.ErrorIs(t, err, ports.ErrInvalidParameters)

	svc, err := NewBacktestService(&mockLogger{}, nil, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.TieBreakTakeProfit, svc.opts.TieBreak)
	assert.Equal(t, 1, svc.opts.ScanWorkers)
}

func TestBacktestService_LoadSeries(t *testing.T) {
	failing := &mockSource{name: "broken", err: fmt.Errorf("disk gone: %w", ports.ErrSourceUnavailable)}
	svc, logger := newService(t, nil, failing, scenarioSource())

	ds, err := svc.LoadSeries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Series.Len())
	assert.Equal(t, 5, ds.Report.RowsRead)
	assert.Len(t, ds.Report.Dropped, 1)
	assert.Equal(t, 1, ds.Report.Duplicates)
	assert.Empty(t, ds.Anomalies)

	// The duplicate at 13:00 resolves to the later file's row.
	bars := ds.Series.Bars()
	assert.Equal(t, 110.0, bars[1].Close)

	assert.Contains(t, logger.errorMsgs, "Failed to load bar source")
	assert.Contains(t, logger.warnMsgs, "Dropped malformed row")
	assert.Contains(t, logger.infoMsgs, "Loaded 2 files with 5 total rows.")
}

func TestBacktestService_LoadSeriesCountsUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"),
		[]byte("open_time,open,high,low,close,volume\n1718366400000,100,105,95,100,1\n1718370000000,100,112,99,110,1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("foo,bar\n1,2\n"), 0o644))

	logger := &mockLogger{}
	src, err := csvsource.New(csvsource.Config{Pattern: filepath.Join(dir, "*.csv"), Logger: logger})
	require.NoError(t, err)
	svc, err := NewBacktestService(logger, []ports.BarSource{src}, nil, Options{})
	require.NoError(t, err)

	ds, err := svc.LoadSeries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Series.Len())
	assert.Equal(t, 2, ds.Report.Sources)
	assert.Contains(t, logger.errorMsgs, "Error reading CSV file, skipping")
	assert.Contains(t, logger.infoMsgs, "Loaded 2 files with 2 total rows.")
}

func TestBacktestService_LoadSeriesFailures(t *testing.T) {
	svc, _ := newService(t, nil)
	_, err := svc.LoadSeries(context.Background())
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	svc, _ = newService(t, nil, &mockSource{name: "broken", err: errors.New("boom")})
	_, err = svc.LoadSeries(context.Background())
	assert.ErrorIs(t, err, ports.ErrSourceUnavailable)

	svc, _ = newService(t, nil, &mockSource{name: "junk", sources: []domain.RawSource{{Name: "x", Rows: []domain.RawRow{{Timestamp: "nope"}}}}})
	_, err = svc.LoadSeries(context.Background())
	assert.ErrorIs(t, err, ports.ErrEmptyData)
}

func TestBacktestService_Run(t *testing.T) {
	repo := &mockRunRepo{}
	svc, logger := newService(t, repo, scenarioSource())
	ds, err := svc.LoadSeries(context.Background())
	require.NoError(t, err)

	text := "2024-06-14 13:00:00\nnonsense\n2024-06-14 12:30:00\n"
	outcome, err := svc.Run(context.Background(), ds, text, domain.ExitParameters{TakeProfitPct: 1, StopLossPct: 50})
	require.NoError(t, err)

	require.Len(t, outcome.Result.Trades, 1)
	trade := outcome.Result.Trades[0]
	assert.Equal(t, domain.OutcomeTakeProfit, trade.Outcome)
	assert.InDelta(t, 1.0, trade.PnLPct, 1e-9)
	assert.Equal(t, 1, outcome.Summary.TotalTrades)
	assert.Equal(t, 100.0, outcome.Summary.WinRatePct)
	assert.Len(t, outcome.Selection.Rejected, 1)
	assert.Len(t, outcome.Selection.Missing, 1)

	assert.Equal(t, int64(1), outcome.RunID)
	require.Len(t, repo.runs, 1)
	assert.Equal(t, 3, repo.runs[0].EntriesRequested)
	assert.Equal(t, domain.TieBreakTakeProfit, repo.runs[0].TieBreak)
	assert.Contains(t, logger.warnMsgs, "Ignoring unparseable entry")
}

func TestBacktestService_RunWithoutValidEntries(t *testing.T) {
	svc, _ := newService(t, nil, scenarioSource())
	ds, err := svc.LoadSeries(context.Background())
	require.NoError(t, err)

	outcome, err := svc.Run(context.Background(), ds, "", domain.ExitParameters{TakeProfitPct: 10, StopLossPct: 5})
	require.NoError(t, err)
	assert.Empty(t, outcome.Result.Trades)
	assert.Equal(t, domain.RunSummary{}, outcome.Summary)
	assert.Zero(t, outcome.RunID)
}

func TestBacktestService_RunPersistFailureIsNotFatal(t *testing.T) {
	repo := &mockRunRepo{saveErr: ports.ErrDBConnection}
	svc, logger := newService(t, repo, scenarioSource())
	ds, err := svc.LoadSeries(context.Background())
	require.NoError(t, err)

	outcome, err := svc.Run(context.Background(), ds, "2024-06-14 12:00:00", domain.ExitParameters{TakeProfitPct: 10, StopLossPct: 5})
	require.NoError(t, err)
	assert.Zero(t, outcome.RunID)
	assert.Contains(t, logger.errorMsgs, "Failed to persist run")
}

func TestBacktestService_RunInvalidParams(t *testing.T) {
	svc, _ := newService(t, nil, scenarioSource())
	ds, err := svc.LoadSeries(context.Background())
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), ds, "2024-06-14 12:00:00", domain.ExitParameters{TakeProfitPct: 0, StopLossPct: 5})
	assert.ErrorIs(t, err, ports.ErrInvalidParameters)

	_, err = svc.Run(context.Background(), nil, "", domain.ExitParameters{TakeProfitPct: 1, StopLossPct: 1})
	assert.ErrorIs(t, err, ports.ErrEmptyData)
}

func TestBacktestService_Sweep(t *testing.T) {
	svc, _ := newService(t, nil, scenarioSource())
	ds, err := svc.LoadSeries(context.Background())
	require.NoError(t, err)

	cfg := optimization.OptimizerConfig{
		TakeProfit: optimization.ParameterRange{Min: 1, Max: 12, Step: 1},
		StopLoss:   optimization.ParameterRange{Min: 1, Max: 3, Step: 1},
		Workers:    3,
	}
	results, err := svc.Sweep(context.Background(), ds, "2024-06-14 12:00:00\n2024-06-14 13:00:00", cfg)
	require.NoError(t, err)
	require.Len(t, results, 36)
	assert.GreaterOrEqual(t, results[0].Summary.TotalReturnPct, results[len(results)-1].Summary.TotalReturnPct)

	_, err = svc.Sweep(context.Background(), ds, "garbage", cfg)
	assert.ErrorIs(t, err, ports.ErrEmptyData)
}

func TestBacktestService_History(t *testing.T) {
	repo := &mockRunRepo{}
	svc, _ := newService(t, repo, scenarioSource())
	ds, err := svc.LoadSeries(context.Background())
	require.NoError(t, err)

	for _, tp := range []float64{1, 50} {
		_, err := svc.Run(context.Background(), ds, "2024-06-14 12:00:00", domain.ExitParameters{TakeProfitPct: tp, StopLossPct: 50})
		require.NoError(t, err)
	}

	rows, err := svc.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 50.0, rows[0].Record.Params.TakeProfitPct, "newest first")
	assert.Equal(t, 1, rows[0].Summary.StillOpen)
	assert.Equal(t, 1, rows[1].Summary.TakeProfits)

	noHistory, _ := newService(t, nil)
	_, err = noHistory.History(context.Background(), 10)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}
