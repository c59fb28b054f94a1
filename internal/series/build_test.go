package series

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candleBacktest/internal/domain"
	"candleBacktest/internal/ports"
)

func row(ts, o, h, l, c, v string) domain.RawRow {
	return domain.RawRow{Timestamp: ts, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestBuild(t *testing.T) {
	sources := []domain.RawSource{
		{
			Name: "a.csv",
			Rows: []domain.RawRow{
				row("1718370000000", "100", "112", "99", "110", "5"),
				row("bogus", "1", "1", "1", "1", "1"),
				row("1718366400000", "100", "105", "95", "100", "3"),
			},
		},
		{
			Name: "b.csv",
			Rows: []domain.RawRow{
				row("2024-06-14 14:00:00", "110", "111", "108", "109", "2"),
				row("2024-06-14 13:00:00", "100", "113", "98", "111", "9"),
				row("1718373600000", "1", "2", "abc", "1", "1"),
				row("", "1", "1", "1", "1", "1"),
				row("1718373600000", "1", "2", "1", "1", ""),
			},
		},
	}

	s, report, err := Build(sources)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Sources)
	assert.Equal(t, 8, report.RowsRead)
	require.Len(t, report.Dropped, 4)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 3, report.Kept())
	assert.Equal(t, 3, s.Len())

	first := report.Dropped[0]
	assert.Equal(t, "a.csv", first.Source)
	assert.Equal(t, 2, first.Row)
	assert.True(t, errors.Is(first, ports.ErrData))
	assert.Contains(t, report.Dropped[1].Reason, "non-numeric low")
	assert.Equal(t, "missing timestamp", report.Dropped[2].Reason)
	assert.Equal(t, "missing volume", report.Dropped[3].Reason)

	// 13:00 appears in both sources; b.csv is merged later and wins.
	got, ok := s.PriceAt(hour(1))
	require.True(t, ok)
	assert.Equal(t, 111.0, got.Close)

	bars := s.Bars()
	for i := 1; i < len(bars); i++ {
		assert.True(t, bars[i-1].Timestamp.Before(bars[i].Timestamp))
	}
}

func TestBuild_AllRowsMalformed(t *testing.T) {
	_, report, err := Build([]domain.RawSource{{
		Name: "bad.csv",
		Rows: []domain.RawRow{row("x", "1", "1", "1", "1", "1"), row("1718366400000", "NaN", "1", "1", "1", "1")},
	}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrEmptyData))
	assert.Len(t, report.Dropped, 2)
}

func TestBuild_NoSources(t *testing.T) {
	_, _, err := Build(nil)
	assert.True(t, errors.Is(err, ports.ErrEmptyData))
}

func TestBuild_KeepsInvariantViolations(t *testing.T) {
	s, report, err := Build([]domain.RawSource{{
		Name: "odd.csv",
		Rows: []domain.RawRow{row("1718366400000", "100", "90", "110", "100", "0")},
	}})
	require.NoError(t, err)
	assert.Empty(t, report.Dropped)
	b, err := s.LastBar()
	require.NoError(t, err)
	assert.Equal(t, 90.0, b.High)
	assert.Equal(t, 110.0, b.Low)
}
