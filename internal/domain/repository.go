package domain

import (
	"context"
	"encoding/json"
	"time"
)

// DataRepository defines the interface for snapshot persistence
type DataRepository interface {
	// SaveWeatherData persists a current-conditions snapshot
	SaveWeatherData(ctx context.Context, data WeatherSnapshot) error

	// SaveTrafficData persists a traffic snapshot
	SaveTrafficData(ctx context.Context, data TrafficSnapshot) error

	// SaveAirQualityData persists an air quality snapshot
	SaveAirQualityData(ctx context.Context, data AirQualitySnapshot) error

	// GetHistoricalWeather retrieves weather history
	GetHistoricalWeather(ctx context.Context, from, to time.Time) ([]WeatherSnapshot, error)

	// GetHistoricalTraffic retrieves traffic history
	GetHistoricalTraffic(ctx context.Context, from, to time.Time) ([]TrafficSnapshot, error)

	// GetHistoricalAirQuality retrieves air quality history
	GetHistoricalAirQuality(ctx context.Context, from, to time.Time) ([]AirQualitySnapshot, error)

	// Health checks database connectivity
	Health(ctx context.Context) error
}

// Report kinds published as events.
const (
	ReportKindWeather    = "weather"
	ReportKindAirQuality = "air_quality"
	ReportKindTraffic    = "traffic"
)

// ReportEvent announces a freshly built city report
type ReportEvent struct {
	City        string          `json:"city"`
	Kind        string          `json:"kind"`
	GeneratedAt time.Time       `json:"generated_at"`
	Payload     json.RawMessage `json:"payload"`
}

// ReportPublisher forwards report events to downstream consumers
type ReportPublisher interface {
	PublishReport(ctx context.Context, event ReportEvent) error
}
