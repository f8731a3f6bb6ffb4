package postgres

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/smartcity/assistant/internal/domain"
)

// memoryRetention matches the widest history window the API serves.
const memoryRetention = 720 * time.Hour

// MemoryRepository implements domain.DataRepository in process memory.
// It backs demo mode when no DATABASE_URL is configured. Snapshots older
// than memoryRetention are dropped on each save.
type MemoryRepository struct {
	mu         sync.RWMutex
	weather    []domain.WeatherSnapshot
	traffic    []domain.TrafficSnapshot
	airQuality []domain.AirQualitySnapshot
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// SaveWeatherData stores a weather snapshot
func (r *MemoryRepository) SaveWeatherData(ctx context.Context, data domain.WeatherSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.weather = prune(append(r.weather, data), weatherTime)
	return nil
}

// SaveTrafficData stores a traffic snapshot
func (r *MemoryRepository) SaveTrafficData(ctx context.Context, data domain.TrafficSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traffic = prune(append(r.traffic, data), trafficTime)
	return nil
}

// SaveAirQualityData stores an air quality snapshot
func (r *MemoryRepository) SaveAirQualityData(ctx context.Context, data domain.AirQualitySnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.airQuality = prune(append(r.airQuality, data), airQualityTime)
	return nil
}

// GetHistoricalWeather returns snapshots within [from, to], newest first
func (r *MemoryRepository) GetHistoricalWeather(ctx context.Context, from, to time.Time) ([]domain.WeatherSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return window(r.weather, from, to, weatherTime), nil
}

// GetHistoricalTraffic returns snapshots within [from, to], newest first
func (r *MemoryRepository) GetHistoricalTraffic(ctx context.Context, from, to time.Time) ([]domain.TrafficSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return window(r.traffic, from, to, trafficTime), nil
}

// GetHistoricalAirQuality returns snapshots within [from, to], newest first
func (r *MemoryRepository) GetHistoricalAirQuality(ctx context.Context, from, to time.Time) ([]domain.AirQualitySnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return window(r.airQuality, from, to, airQualityTime), nil
}

// Health always returns nil in memory mode
func (r *MemoryRepository) Health(ctx context.Context) error {
	return nil
}

func weatherTime(s domain.WeatherSnapshot) time.Time       { return s.Timestamp }
func trafficTime(s domain.TrafficSnapshot) time.Time       { return s.Timestamp }
func airQualityTime(s domain.AirQualitySnapshot) time.Time { return s.Timestamp }

// prune drops items older than memoryRetention, reusing the backing array
func prune[T any](items []T, ts func(T) time.Time) []T {
	cutoff := domain.Now().Add(-memoryRetention)
	kept := items[:0]
	for _, item := range items {
		if ts(item).Before(cutoff) {
			continue
		}
		kept = append(kept, item)
	}
	clear(items[len(kept):])
	return kept
}

func window[T any](items []T, from, to time.Time, ts func(T) time.Time) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		t := ts(item)
		if t.Before(from) || t.After(to) {
			continue
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool { return ts(out[i]).After(ts(out[j])) })
	if len(out) > historyLimit {
		out = out[:historyLimit]
	}
	return out
}

var _ domain.DataRepository = (*MemoryRepository)(nil)
