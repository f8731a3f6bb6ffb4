package domain

import "time"

// UnknownAQILabel is shown for indices outside the provider's 1..5 scale
const UnknownAQILabel = "Unknown"

var aqiLabels = map[int]string{
	1: "Good",
	2: "Fair",
	3: "Moderate",
	4: "Poor",
	5: "Very Poor",
}

// AirQuality is an air pollution reading for a location
type AirQuality struct {
	AQI        int                `json:"aqi"`
	Pollutants map[string]float64 `json:"pollutants"` // μg/m³ keyed by symbol (co, no2, pm2_5, ...)
}

// Label maps the AQI index to its human-readable level
func (a AirQuality) Label() string {
	return AQILabel(a.AQI)
}

// AQILabel returns the level name for an index, or UnknownAQILabel
func AQILabel(index int) string {
	if label, ok := aqiLabels[index]; ok {
		return label
	}
	return UnknownAQILabel
}

// AirQualitySnapshot is a persisted air quality reading
type AirQualitySnapshot struct {
	Location
	AirQuality
	Timestamp time.Time `json:"timestamp"`
}
