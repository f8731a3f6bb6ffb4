package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/smartcity/assistant/internal/domain"
)

// ProviderTomTom names the traffic flow provider
const ProviderTomTom = "tomtom"

// flowZoom is the map zoom level TomTom uses to pick the road segment.
const flowZoom = "10"

// TrafficService fetches road flow from the TomTom Traffic API. TomTom has no
// geocoding here, so callers pass coordinates resolved elsewhere.
type TrafficService struct {
	apiKey string
	client *providerClient
}

// NewTrafficService creates a new traffic service
func NewTrafficService(apiKey string, opts ProviderOptions) *TrafficService {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.tomtom.com/traffic/services/4"
	}
	return &TrafficService{
		apiKey: apiKey,
		client: newProviderClient(ProviderTomTom, opts),
	}
}

type flowSegmentResponse struct {
	FlowSegmentData *struct {
		CurrentSpeed       *float64 `json:"currentSpeed"`
		FreeFlowSpeed      *float64 `json:"freeFlowSpeed"`
		CurrentTravelTime  *float64 `json:"currentTravelTime"`
		FreeFlowTravelTime *float64 `json:"freeFlowTravelTime"`
	} `json:"flowSegmentData"`
}

// FetchTraffic returns the flow on the segment closest to loc
func (s *TrafficService) FetchTraffic(ctx context.Context, loc domain.Location) (domain.TrafficSample, error) {
	if s.apiKey == "" {
		return domain.TrafficSample{}, &domain.FetchError{Provider: ProviderTomTom, Err: errMissingAPIKey}
	}

	params := url.Values{}
	params.Set("point", formatCoord(loc.Latitude)+","+formatCoord(loc.Longitude))
	params.Set("key", s.apiKey)

	var resp flowSegmentResponse
	if err := s.client.getJSON(ctx, "/flowSegmentData/absolute/"+flowZoom+"/json", params, &resp); err != nil {
		return domain.TrafficSample{}, fmt.Errorf("traffic: failed to fetch flow segment: %w", err)
	}

	data := resp.FlowSegmentData
	switch {
	case data == nil:
		return domain.TrafficSample{}, s.client.malformed("flowSegmentData")
	case data.CurrentSpeed == nil:
		return domain.TrafficSample{}, s.client.malformed("flowSegmentData.currentSpeed")
	case data.FreeFlowSpeed == nil:
		return domain.TrafficSample{}, s.client.malformed("flowSegmentData.freeFlowSpeed")
	case data.CurrentTravelTime == nil:
		return domain.TrafficSample{}, s.client.malformed("flowSegmentData.currentTravelTime")
	case data.FreeFlowTravelTime == nil:
		return domain.TrafficSample{}, s.client.malformed("flowSegmentData.freeFlowTravelTime")
	}

	return domain.TrafficSample{
		CurrentSpeed:       *data.CurrentSpeed,
		FreeFlowSpeed:      *data.FreeFlowSpeed,
		CurrentTravelTime:  *data.CurrentTravelTime,
		FreeFlowTravelTime: *data.FreeFlowTravelTime,
	}, nil
}

var _ domain.TrafficFetcher = (*TrafficService)(nil)
