package domain

import (
	"fmt"
	"time"
)

// TrafficSample is a flow reading for the road segment nearest a point
type TrafficSample struct {
	CurrentSpeed       float64 `json:"current_speed_kmh"`
	FreeFlowSpeed      float64 `json:"free_flow_speed_kmh"`
	CurrentTravelTime  float64 `json:"current_travel_time_s"`
	FreeFlowTravelTime float64 `json:"free_flow_travel_time_s"`
}

// CongestionRatio is current travel time over free-flow travel time.
// A zero free-flow travel time yields ErrMetricUnavailable.
func (t TrafficSample) CongestionRatio() (float64, error) {
	if t.FreeFlowTravelTime == 0 {
		return 0, fmt.Errorf("congestion ratio: free-flow travel time is zero: %w", ErrMetricUnavailable)
	}
	return t.CurrentTravelTime / t.FreeFlowTravelTime, nil
}

// CongestionLevel returns human-readable level for a congestion ratio
func CongestionLevel(ratio float64) string {
	switch {
	case ratio >= 2.0:
		return "Severe"
	case ratio >= 1.6:
		return "Heavy"
	case ratio >= 1.3:
		return "Moderate"
	case ratio >= 1.1:
		return "Light"
	default:
		return "Free Flow"
	}
}

// TrafficSnapshot is a persisted traffic reading
type TrafficSnapshot struct {
	Location
	TrafficSample
	CongestionRatio *float64  `json:"congestion_ratio"`
	Timestamp       time.Time `json:"timestamp"`
}
