package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/smartcity/assistant/internal/domain"
	"github.com/smartcity/assistant/internal/observability"
	"github.com/smartcity/assistant/internal/render"
)

// Report modules, used as metric labels.
const (
	moduleWeather    = "weather"
	moduleAirQuality = "air_quality"
	moduleTraffic    = "traffic"
	moduleOverview   = "overview"
)

// ForecastSummarizer writes a natural-language summary of a forecast
type ForecastSummarizer interface {
	SummarizeForecast(ctx context.Context, city string, entries []domain.ForecastEntry) (string, error)
}

// SectionError describes why one section of a report is missing
type SectionError = render.SectionError

// Section holds either rendered data or the error that prevented it
type Section[T any] struct {
	Data  *T            `json:"data,omitempty"`
	Error *SectionError `json:"error,omitempty"`
}

// Overview is every module for one city, resolved once
type Overview struct {
	Location   domain.Location                `json:"location"`
	Weather    Section[render.WeatherView]    `json:"weather"`
	AirQuality Section[render.AirQualityView] `json:"air_quality"`
	Traffic    Section[render.TrafficView]    `json:"traffic"`
	Timestamp  time.Time                      `json:"timestamp"`
}

// DashboardService resolves a city once and drives the per-module fetches.
// Fetches run sequentially; a failed module never aborts its siblings.
type DashboardService struct {
	resolver   domain.LocationResolver
	forecasts  domain.ForecastFetcher
	airQuality domain.AirQualityFetcher
	traffic    domain.TrafficFetcher
	repo       DataRepository
	publisher  domain.ReportPublisher
	summarizer ForecastSummarizer
	logger     *slog.Logger
	metrics    *observability.Metrics

	wgBg sync.WaitGroup // tracks background goroutines for graceful shutdown
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(
	resolver domain.LocationResolver,
	forecasts domain.ForecastFetcher,
	airQuality domain.AirQualityFetcher,
	traffic domain.TrafficFetcher,
	repo DataRepository,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *DashboardService {
	return &DashboardService{
		resolver:   resolver,
		forecasts:  forecasts,
		airQuality: airQuality,
		traffic:    traffic,
		repo:       repo,
		logger:     logger,
		metrics:    metrics,
	}
}

// SetPublisher enables report events
func (s *DashboardService) SetPublisher(p domain.ReportPublisher) {
	s.publisher = p
}

// SetForecastSummarizer enables forecast summaries on weather reports
func (s *DashboardService) SetForecastSummarizer(fs ForecastSummarizer) {
	s.summarizer = fs
}

// WaitBackground blocks until all background save goroutines complete.
// Call during graceful shutdown to avoid dropped writes.
func (s *DashboardService) WaitBackground() {
	s.wgBg.Wait()
}

// WeatherReport returns current conditions plus the daily forecast for city.
// A forecast failure is reported as a notice; current conditions still render.
func (s *DashboardService) WeatherReport(ctx context.Context, city string, withSummary bool) (render.WeatherView, error) {
	loc, current, err := s.resolver.ResolveLocation(ctx, city)
	if err != nil {
		s.observe(moduleWeather, err)
		return render.WeatherView{}, err
	}

	view := s.buildWeather(ctx, loc, current, withSummary)
	s.observe(moduleWeather, nil)
	return view, nil
}

// AirQualityReport returns the AQI and pollutant breakdown for city
func (s *DashboardService) AirQualityReport(ctx context.Context, city string) (render.AirQualityView, error) {
	loc, _, err := s.resolver.ResolveLocation(ctx, city)
	if err != nil {
		s.observe(moduleAirQuality, err)
		return render.AirQualityView{}, err
	}

	view, err := s.buildAirQuality(ctx, loc)
	s.observe(moduleAirQuality, err)
	return view, err
}

// TrafficReport returns road flow near the city's coordinates
func (s *DashboardService) TrafficReport(ctx context.Context, city string) (render.TrafficView, error) {
	loc, _, err := s.resolver.ResolveLocation(ctx, city)
	if err != nil {
		s.observe(moduleTraffic, err)
		return render.TrafficView{}, err
	}

	view, err := s.buildTraffic(ctx, loc)
	s.observe(moduleTraffic, err)
	return view, err
}

// Overview resolves city once, then fetches forecast, air quality and
// traffic in turn. Only a resolution failure is returned as an error.
func (s *DashboardService) Overview(ctx context.Context, city string) (Overview, error) {
	loc, current, err := s.resolver.ResolveLocation(ctx, city)
	if err != nil {
		s.observe(moduleOverview, err)
		return Overview{}, err
	}

	out := Overview{Location: loc, Timestamp: domain.Now()}

	weather := s.buildWeather(ctx, loc, current, false)
	out.Weather.Data = &weather

	if aq, err := s.buildAirQuality(ctx, loc); err != nil {
		out.AirQuality.Error = render.NewSectionError(err)
	} else {
		out.AirQuality.Data = &aq
	}

	if tr, err := s.buildTraffic(ctx, loc); err != nil {
		out.Traffic.Error = render.NewSectionError(err)
	} else {
		out.Traffic.Data = &tr
	}

	s.observe(moduleOverview, nil)
	return out, nil
}

func (s *DashboardService) buildWeather(ctx context.Context, loc domain.Location, current domain.CurrentConditions, withSummary bool) render.WeatherView {
	var daily []domain.ForecastEntry
	var notices []string

	var forecastErr *render.SectionError

	entries, err := s.forecasts.FetchForecast(ctx, loc)
	if err != nil {
		s.logger.Warn("forecast unavailable", "city", loc.City, "error", err)
		notices = append(notices, "forecast unavailable: "+err.Error())
		forecastErr = render.NewSectionError(err)
		entries = nil
	} else {
		daily = domain.DailyForecast(entries)
	}

	view := render.Weather(loc, current, daily)
	view.Notices = notices
	view.ForecastError = forecastErr

	if withSummary && s.summarizer != nil && len(entries) > 0 {
		summary, err := s.summarizer.SummarizeForecast(ctx, loc.City, entries)
		if err != nil {
			view.Notices = append(view.Notices, "forecast summary unavailable: "+err.Error())
		} else {
			view.Summary = summary
		}
	}

	now := domain.Now()
	s.background(domain.ReportKindWeather, loc.City, view, func(ctx context.Context) error {
		return s.repo.SaveWeatherData(ctx, domain.WeatherSnapshot{Location: loc, CurrentConditions: current, Timestamp: now})
	})
	return view
}

func (s *DashboardService) buildAirQuality(ctx context.Context, loc domain.Location) (render.AirQualityView, error) {
	aq, err := s.airQuality.FetchAirQuality(ctx, loc)
	if err != nil {
		s.logger.Warn("air quality unavailable", "city", loc.City, "error", err)
		return render.AirQualityView{}, err
	}

	view := render.AirQuality(loc, aq)

	now := domain.Now()
	s.background(domain.ReportKindAirQuality, loc.City, view, func(ctx context.Context) error {
		return s.repo.SaveAirQualityData(ctx, domain.AirQualitySnapshot{Location: loc, AirQuality: aq, Timestamp: now})
	})
	return view, nil
}

func (s *DashboardService) buildTraffic(ctx context.Context, loc domain.Location) (render.TrafficView, error) {
	sample, err := s.traffic.FetchTraffic(ctx, loc)
	if err != nil {
		s.logger.Warn("traffic unavailable", "city", loc.City, "error", err)
		return render.TrafficView{}, err
	}

	view := render.Traffic(loc, sample)
	if view.Notice != "" {
		s.logger.Info("congestion ratio unavailable", "city", loc.City, "reason", view.Notice)
	}

	now := domain.Now()
	s.background(domain.ReportKindTraffic, loc.City, view, func(ctx context.Context) error {
		return s.repo.SaveTrafficData(ctx, domain.TrafficSnapshot{
			Location:        loc,
			TrafficSample:   sample,
			CongestionRatio: view.CongestionRatio,
			Timestamp:       now,
		})
	})
	return view, nil
}

// background persists a snapshot and publishes the report event without
// holding up the response.
func (s *DashboardService) background(kind, city string, view any, save func(ctx context.Context) error) {
	var payload json.RawMessage
	if s.publisher != nil {
		data, err := json.Marshal(view)
		if err != nil {
			s.logger.Error("failed to encode report event", "kind", kind, "error", err)
		} else {
			payload = data
		}
	}
	generatedAt := domain.Now()

	s.wgBg.Add(1)
	go func() {
		defer s.wgBg.Done()
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := save(bgCtx); err != nil {
			s.logger.Error("failed to save snapshot", "kind", kind, "city", city, "error", err)
		}

		if s.publisher == nil || payload == nil {
			return
		}
		event := domain.ReportEvent{City: city, Kind: kind, GeneratedAt: generatedAt, Payload: payload}
		if err := s.publisher.PublishReport(bgCtx, event); err != nil {
			s.logger.Error("failed to publish report event", "kind", kind, "city", city, "error", err)
			return
		}
		s.metrics.ReportsPublished.Inc()
	}()
}

func (s *DashboardService) observe(module string, err error) {
	outcome := "success"
	if err != nil {
		outcome = domain.ErrorKind(err)
	}
	s.metrics.ReportsServed.WithLabelValues(module, outcome).Inc()
}
