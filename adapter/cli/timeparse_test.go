package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateTime(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-06-03 09:30", time.Date(2024, 6, 3, 9, 30, 0, 0, berlin)},
		{"2024-06-03T09:30:15", time.Date(2024, 6, 3, 9, 30, 15, 0, berlin)},
		{"2024-06-03", time.Date(2024, 6, 3, 0, 0, 0, 0, berlin)},
		{"2024-06-03T07:30:00Z", time.Date(2024, 6, 3, 7, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDateTime(tt.in, berlin)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err = ParseDateTime("next tuesday", berlin)
	assert.ErrorContains(t, err, "invalid date-time")
}

func TestParseRange(t *testing.T) {
	now := time.Date(2024, 6, 3, 15, 4, 0, 0, time.UTC)

	start, end, err := ParseRange("", 7, time.UTC, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), end)

	_, _, err = ParseRange("", 0, time.UTC, now)
	assert.Error(t, err)
}
