package domain

import "context"

// LocationResolver turns a city name into coordinates plus the current
// conditions returned alongside them.
type LocationResolver interface {
	ResolveLocation(ctx context.Context, city string) (Location, CurrentConditions, error)
}

// ForecastFetcher returns the raw 3-hourly forecast for a location
type ForecastFetcher interface {
	FetchForecast(ctx context.Context, loc Location) ([]ForecastEntry, error)
}

// AirQualityFetcher returns the current air pollution reading for a location
type AirQualityFetcher interface {
	FetchAirQuality(ctx context.Context, loc Location) (AirQuality, error)
}

// TrafficFetcher returns the flow on the road segment nearest a location
type TrafficFetcher interface {
	FetchTraffic(ctx context.Context, loc Location) (TrafficSample, error)
}

// TextGenerator sends a prompt to a hosted language model
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// GenerationParams are the sampling parameters for a generation request
type GenerationParams struct {
	DecodingMethod string   `json:"decoding_method"`
	MaxNewTokens   int      `json:"max_new_tokens"`
	Temperature    float64  `json:"temperature"`
	TopP           float64  `json:"top_p"`
	StopSequences  []string `json:"stop_sequences"`
}
