package csvsource

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candleBacktest/internal/domain"
	"candleBacktest/internal/ports"
	"candleBacktest/internal/series"
)

// mockLogger records error messages for assertions.
type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadFile_ColumnAliases(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{name: "exchange export", content: "open_time,open,high,low,close,volume,ignore\n1718366400000,100,105,95,100,12\n"},
		{name: "capitalized", content: "Date,Open,High,Low,Close,Volume\n1718366400000,100,105,95,100,12\n"},
		{name: "byte order mark and spaces", content: "\ufefftimestamp, open ,high,low,close,volume\n1718366400000,100,105,95,100,12\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := ReadFile(writeFile(t, dir, "f.csv", tt.content))
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, domain.RawRow{Timestamp: "1718366400000", Open: "100", High: "105", Low: "95", Close: "100", Volume: "12"}, rows[0])
		})
	}
}

func TestReadFile_MissingColumn(t *testing.T) {
	path := writeFile(t, t.TempDir(), "f.csv", "open_time,open,high,low,close\n1,1,1,1,1\n")
	_, err := ReadFile(path)
	assert.ErrorIs(t, err, ports.ErrUnsupportedFormat)
}

func TestReadFile_HeaderOnly(t *testing.T) {
	rows, err := ReadFile(writeFile(t, t.TempDir(), "f.csv", "open_time,open,high,low,close,volume\n"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSource_Load(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.csv", "Date,Open,High,Low,Close,Volume\n2024-06-14 13:00:00,100,112,99,110,5\n")
	writeFile(t, dir, "a.csv", "open_time,open,high,low,close,volume\n1718366400000,100,105,95,100,12\n1718366400000,101,105,95,101,12\n")
	writeFile(t, dir, "c.csv", "foo,bar\n1,2\n")
	writeFile(t, dir, "notes.txt", "ignored")

	logger := &mockLogger{}
	src, err := New(Config{Pattern: filepath.Join(dir, "*.csv"), Workers: 3, Logger: logger})
	require.NoError(t, err)

	sources, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 3, "every matched file is counted")
	assert.Equal(t, filepath.Join(dir, "a.csv"), sources[0].Name)
	assert.Equal(t, filepath.Join(dir, "b.csv"), sources[1].Name)
	assert.Equal(t, filepath.Join(dir, "c.csv"), sources[2].Name)
	assert.Len(t, sources[0].Rows, 2)
	assert.Equal(t, "101", sources[0].Rows[1].Open, "rows keep file order")
	assert.Empty(t, sources[2].Rows, "the file without OHLCV columns contributes nothing")
	assert.Len(t, logger.errors, 1)
}

func TestReadFile_ShortRow(t *testing.T) {
	content := "open_time,open,high,low,close,volume\n" +
		"1718366400000,100,105,95,100,12\n" +
		"1718370000000,101,106\n" +
		"1718373600000,102,107,97,102,14\n"
	path := writeFile(t, t.TempDir(), "f.csv", content)

	rows, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, domain.RawRow{Timestamp: "1718370000000", Open: "101", High: "106"}, rows[1])

	s, report, err := series.Build([]domain.RawSource{{Name: path, Rows: rows}})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	require.Len(t, report.Dropped, 1)
	assert.Equal(t, 2, report.Dropped[0].Row)
	assert.Equal(t, "missing low", report.Dropped[0].Reason)
	assert.ErrorIs(t, report.Dropped[0], ports.ErrData)
}

func TestSource_LoadKeepsValidRowsAroundShortRow(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "timestamp,open,high,low,close,volume\n"+
		"1718366400000,100,105,95,100,12\n"+
		"1718370000000\n"+
		"1718373600000,102,107,97,102,14\n")

	logger := &mockLogger{}
	src, err := New(Config{Pattern: filepath.Join(dir, "*.csv"), Logger: logger})
	require.NoError(t, err)

	sources, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, logger.errors)

	s, report, err := series.Build(sources)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sources)
	assert.Equal(t, 3, report.RowsRead)
	assert.Len(t, report.Dropped, 1)
	assert.Equal(t, 2, s.Len())
}

func TestSource_LoadNoMatches(t *testing.T) {
	src, err := New(Config{Pattern: filepath.Join(t.TempDir(), "*.csv"), Logger: &mockLogger{}})
	require.NoError(t, err)

	_, err = src.Load(context.Background())
	assert.ErrorIs(t, err, ports.ErrSourceUnavailable)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Pattern: "*.csv"})
	assert.Error(t, err)

	_, err = New(Config{Logger: &mockLogger{}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}
