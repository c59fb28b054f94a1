package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "milliseconds since epoch",
			input: "1718366400000",
			want:  time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC),
		},
		{
			name:  "milliseconds with decimal point",
			input: "1718366400000.0",
			want:  time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC),
		},
		{
			name:  "space separated date time",
			input: "2024-06-14 12:00:00",
			want:  time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC),
		},
		{
			name:  "surrounding whitespace",
			input: "  2024-06-14 12:00:00 \t",
			want:  time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC),
		},
		{
			name:  "RFC3339 with offset is normalized to UTC",
			input: "2024-06-14T14:00:00+02:00",
			want:  time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC),
		},
		{
			name:  "date only",
			input: "2024-06-14",
			want:  time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "minutes precision",
			input: "2024-06-14 12:30",
			want:  time.Date(2024, 6, 14, 12, 30, 0, 0, time.UTC),
		},
		{
			name:  "slash separated",
			input: "2024/06/14 12:00:00",
			want:  time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC),
		},
		{name: "empty", input: "   ", wantErr: true},
		{name: "garbage", input: "not a date", wantErr: true},
		{name: "NaN", input: "NaN", wantErr: true},
		{name: "integer just past int64", input: "9223372036854775808", wantErr: true},
		{name: "float equal to 2^63", input: "9.223372036854775808e18", wantErr: true},
		{name: "infinite", input: "+Inf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2024, 6, 14, 14, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	assert.Equal(t, "2024-06-14 12:00:00", FormatTimestamp(ts))
}
