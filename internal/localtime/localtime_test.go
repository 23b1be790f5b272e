package localtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayRangeKathmandu(t *testing.T) {
	zone, err := New("+05:45")
	require.NoError(t, err)

	start, end, err := zone.DayRange("2026-02-18")
	require.NoError(t, err)

	// Nepal midnight 2026-02-18 is 18:15 UTC on the previous day.
	assert.Equal(t, time.Date(2026, 2, 17, 18, 15, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 2, 18, 18, 15, 0, 0, time.UTC), end)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestDayRangeNegativeOffset(t *testing.T) {
	zone, err := New("-03:00")
	require.NoError(t, err)

	start, _, err := zone.DayRange("2026-07-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 1, 3, 0, 0, 0, time.UTC), start)
}

func TestDayRangeRejectsMalformedKeys(t *testing.T) {
	zone, err := New("+05:45")
	require.NoError(t, err)

	for _, bad := range []string{
		"",
		"2026-2-18",
		"18-02-2026",
		"2026-02-31",
		"2026-13-01",
		"2026-02-18T00:00:00Z",
		"yesterday",
	} {
		t.Run(bad, func(t *testing.T) {
			_, _, err := zone.DayRange(bad)
			assert.ErrorIs(t, err, ErrInvalidDay)
		})
	}
}

func TestDayKeyRoundTrip(t *testing.T) {
	zone, err := New("+05:45")
	require.NoError(t, err)

	start, end, err := zone.DayRange("2026-02-18")
	require.NoError(t, err)

	assert.Equal(t, "2026-02-18", zone.DayKey(start))
	assert.Equal(t, "2026-02-18", zone.DayKey(end.Add(-time.Second)))
	assert.Equal(t, "2026-02-19", zone.DayKey(end))
}

func TestNewRejectsBadOffsets(t *testing.T) {
	for _, bad := range []string{"", "05:45", "+5:45", "+05:75", "+15:00", "UTC"} {
		_, err := New(bad)
		assert.Error(t, err, "offset %q should be rejected", bad)
	}
}
