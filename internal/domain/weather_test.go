package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func entryAt(ts time.Time, desc string) ForecastEntry {
	return ForecastEntry{
		Timestamp:   ts,
		Date:        ts.UTC().Format(DateLayout),
		Description: desc,
	}
}

func TestKelvinToCelsius(t *testing.T) {
	assert.InDelta(t, 26.85, KelvinToCelsius(300.0), 0.01)
	assert.InDelta(t, 0.0, KelvinToCelsius(273.15), 0.0001)
	assert.InDelta(t, -273.15, KelvinToCelsius(0), 0.0001)
}

func TestDailyForecast(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("empty input", func(t *testing.T) {
		daily := DailyForecast(nil)
		assert.NotNil(t, daily)
		assert.Empty(t, daily)
	})

	t.Run("same date keeps first", func(t *testing.T) {
		first := ForecastEntry{Date: "2024-01-01", Description: "light rain", MinTemp: 1}
		second := ForecastEntry{Date: "2024-01-01", Description: "clear sky", MinTemp: 5}

		daily := DailyForecast([]ForecastEntry{first, second})

		if diff := cmp.Diff([]ForecastEntry{first}, daily); diff != "" {
			t.Errorf("DailyForecast mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("five days of 3-hour intervals", func(t *testing.T) {
		var entries []ForecastEntry
		for i := 0; i < 40; i++ {
			entries = append(entries, entryAt(base.Add(time.Duration(i)*3*time.Hour), "interval"))
		}

		daily := DailyForecast(entries)

		assert.Len(t, daily, 5)
		for i, e := range daily {
			assert.Equal(t, base.AddDate(0, 0, i).Format(DateLayout), e.Date)
			assert.Equal(t, base.AddDate(0, 0, i), e.Timestamp)
		}
	})

	t.Run("partial first day", func(t *testing.T) {
		start := base.Add(21 * time.Hour)
		entries := []ForecastEntry{
			entryAt(start, "a"),
			entryAt(start.Add(3*time.Hour), "b"),
			entryAt(start.Add(6*time.Hour), "c"),
		}

		daily := DailyForecast(entries)

		assert.Equal(t, []string{"a", "b"}, descriptions(daily))
	})

	t.Run("order follows first appearance", func(t *testing.T) {
		entries := []ForecastEntry{
			{Date: "2024-01-02", Description: "x"},
			{Date: "2024-01-03", Description: "y"},
			{Date: "2024-01-02", Description: "z"},
			{Date: "2024-01-04", Description: "w"},
		}

		daily := DailyForecast(entries)

		assert.Equal(t, []string{"x", "y", "w"}, descriptions(daily))
	})

	t.Run("missing date falls back to UTC day", func(t *testing.T) {
		east := time.FixedZone("UTC+5", 5*3600)
		// 2024-01-02 02:00 local is still 2024-01-01 in UTC
		entries := []ForecastEntry{
			{Timestamp: time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC), Description: "a"},
			{Timestamp: time.Date(2024, 1, 2, 2, 0, 0, 0, east), Description: "b"},
		}

		daily := DailyForecast(entries)

		assert.Equal(t, []string{"a"}, descriptions(daily))
	})
}

func TestDailyForecast_AtMostOnePerDate(t *testing.T) {
	dates := []string{"2024-03-01", "2024-03-01", "2024-03-02", "2024-03-01", "2024-03-03", "2024-03-03", "2024-03-02"}
	var entries []ForecastEntry
	for _, d := range dates {
		entries = append(entries, ForecastEntry{Date: d})
	}

	daily := DailyForecast(entries)

	seen := map[string]bool{}
	for _, e := range daily {
		assert.False(t, seen[e.Date], "duplicate date %s", e.Date)
		seen[e.Date] = true
	}
	assert.LessOrEqual(t, len(daily), len(entries))
	assert.Len(t, daily, 3)
}

func descriptions(entries []ForecastEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Description)
	}
	return out
}
