package domain

import "time"

// DateLayout is the calendar-day key used to group forecast entries.
const DateLayout = "2006-01-02"

// absoluteZero is 0 K expressed in °C.
const absoluteZero = 273.15

// Location is a resolved city with its coordinates
type Location struct {
	City      string  `json:"city"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// CurrentConditions is a single snapshot of the weather at a location
type CurrentConditions struct {
	Temperature float64 `json:"temperature"`
	Humidity    int     `json:"humidity"`
	Pressure    int     `json:"pressure"`
	WindSpeed   float64 `json:"wind_speed"`
	Description string  `json:"description,omitempty"`
}

// ForecastEntry is one 3-hourly forecast interval
type ForecastEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Date        string    `json:"date"`
	MinTemp     float64   `json:"min_temp"`
	MaxTemp     float64   `json:"max_temp"`
	Temperature float64   `json:"temperature"`
	Humidity    int       `json:"humidity"`
	WindSpeed   float64   `json:"wind_speed"`
	Description string    `json:"description"`
}

// DayKey returns the calendar day an entry belongs to. Entries without an
// explicit date fall back to the UTC day of their timestamp, which is the
// zone the forecast provider reports in.
func (e ForecastEntry) DayKey() string {
	if e.Date != "" {
		return e.Date
	}
	return e.Timestamp.UTC().Format(DateLayout)
}

// KelvinToCelsius converts a provider temperature to °C
func KelvinToCelsius(k float64) float64 {
	return k - absoluteZero
}

// DailyForecast keeps the first entry seen for every calendar day, preserving
// arrival order.
func DailyForecast(entries []ForecastEntry) []ForecastEntry {
	seen := make(map[string]struct{}, len(entries))
	daily := make([]ForecastEntry, 0, len(entries))

	for _, e := range entries {
		key := e.DayKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		daily = append(daily, e)
	}

	return daily
}

// WeatherSnapshot is a persisted current-conditions reading
type WeatherSnapshot struct {
	Location
	CurrentConditions
	Timestamp time.Time `json:"timestamp"`
}
