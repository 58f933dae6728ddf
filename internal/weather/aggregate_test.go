package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticSeries returns samples every 3 hours from start for the given
// number of days.
func syntheticSeries(start time.Time, days int) ForecastSeries {
	var s ForecastSeries
	for i := 0; i < days*8; i++ {
		s.Entries = append(s.Entries, ForecastEntry{
			Timestamp:   start.Add(time.Duration(i) * 3 * time.Hour),
			Temperature: Measurement{Value: float64(i), Unit: Celsius},
		})
	}
	return s
}

func TestFiveDayPicksOneEntryPerFutureDay(t *testing.T) {
	start := time.Date(2024, 9, 18, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 9, 18, 14, 0, 0, 0, time.UTC)

	got := FiveDay(syntheticSeries(start, 5), now)

	require.Len(t, got, 4)
	for i, e := range got {
		assert.Equal(t, 19+i, e.Timestamp.Day())
		assert.Equal(t, 12, e.Timestamp.Hour(), "first sample within the window wins")
		assert.LessOrEqual(t, abs(14-e.Timestamp.Hour()), HourWindow)
		if i > 0 {
			assert.True(t, got[i-1].Timestamp.Before(e.Timestamp))
		}
	}
}

func TestFiveDayNeverReturnsToday(t *testing.T) {
	start := time.Date(2024, 9, 18, 0, 0, 0, 0, time.UTC)

	for hour := 0; hour < 24; hour++ {
		now := time.Date(2024, 9, 18, hour, 30, 0, 0, time.UTC)
		for _, e := range FiveDay(syntheticSeries(start, 6), now) {
			assert.True(t, e.Timestamp.After(time.Date(2024, 9, 18, 23, 59, 59, 0, time.UTC)), "hour %d", hour)
		}
	}
}

func TestFiveDayShortfall(t *testing.T) {
	start := time.Date(2024, 9, 18, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 9, 18, 14, 0, 0, 0, time.UTC)

	got := FiveDay(syntheticSeries(start, 3), now)
	assert.Len(t, got, 2)

	assert.Empty(t, FiveDay(ForecastSeries{}, now))
}

func TestFiveDaySkipsDaysWithoutMatchingHour(t *testing.T) {
	now := time.Date(2024, 9, 18, 14, 0, 0, 0, time.UTC)
	series := ForecastSeries{Entries: []ForecastEntry{
		{Timestamp: time.Date(2024, 9, 19, 3, 0, 0, 0, time.UTC)},
		{Timestamp: time.Date(2024, 9, 20, 15, 0, 0, 0, time.UTC)},
		{Timestamp: time.Date(2024, 9, 21, 18, 0, 0, 0, time.UTC)},
	}}

	got := FiveDay(series, now)
	require.Len(t, got, 1)
	assert.Equal(t, 20, got[0].Timestamp.Day())
}

func TestFiveDayDoesNotWrapAroundMidnight(t *testing.T) {
	now := time.Date(2024, 9, 18, 23, 0, 0, 0, time.UTC)
	series := ForecastSeries{Entries: []ForecastEntry{
		{Timestamp: time.Date(2024, 9, 19, 1, 0, 0, 0, time.UTC)},
		{Timestamp: time.Date(2024, 9, 20, 21, 0, 0, 0, time.UTC)},
	}}

	got := FiveDay(series, now)
	require.Len(t, got, 1)
	assert.Equal(t, 20, got[0].Timestamp.Day())
}

func TestFiveDayUsesReferenceCalendar(t *testing.T) {
	hst := time.FixedZone("HST", -10*3600)
	now := time.Date(2024, 9, 18, 14, 0, 0, 0, hst) // 2024-09-19 00:00 UTC
	series := ForecastSeries{Entries: []ForecastEntry{
		// 2024-09-19 13:00 HST; the same calendar day as now in UTC.
		{Timestamp: time.Date(2024, 9, 19, 23, 0, 0, 0, time.UTC)},
	}}

	got := FiveDay(series, now)
	require.Len(t, got, 1)
	assert.Equal(t, series.Entries[0].Timestamp, got[0].Timestamp)
}

func TestFiveDayFirstSeenWinsInInputOrder(t *testing.T) {
	now := time.Date(2024, 9, 18, 12, 0, 0, 0, time.UTC)
	series := ForecastSeries{Entries: []ForecastEntry{
		{Timestamp: time.Date(2024, 9, 20, 15, 0, 0, 0, time.UTC)},
		{Timestamp: time.Date(2024, 9, 19, 12, 0, 0, 0, time.UTC)},
		{Timestamp: time.Date(2024, 9, 20, 9, 0, 0, 0, time.UTC)},
	}}

	got := FiveDay(series, now)
	require.Len(t, got, 2)
	assert.Equal(t, time.Date(2024, 9, 19, 12, 0, 0, 0, time.UTC), got[0].Timestamp)
	assert.Equal(t, time.Date(2024, 9, 20, 15, 0, 0, 0, time.UTC), got[1].Timestamp)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
