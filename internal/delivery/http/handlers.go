package http

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/smartcity/assistant/internal/domain"
	"github.com/smartcity/assistant/internal/service"
)

// SessionHeader carries the chat session id in both directions
const SessionHeader = "X-Session-ID"

// History window bounds in hours.
const (
	defaultHistoryHours = 24
	maxHistoryHours     = 720 // 30 days
)

// Handler contains all HTTP handlers
type Handler struct {
	dashboardSvc *service.DashboardService
	assistantSvc *service.AssistantService
	ecoTipsSvc   *service.EcoTipsService
	feedbackSvc  *service.FeedbackService
	sessions     *service.SessionStore
	repo         service.DataRepository
	logger       *slog.Logger
}

// NewHandler creates a new handler
func NewHandler(
	dashboardSvc *service.DashboardService,
	assistantSvc *service.AssistantService,
	ecoTipsSvc *service.EcoTipsService,
	feedbackSvc *service.FeedbackService,
	repo service.DataRepository,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		dashboardSvc: dashboardSvc,
		assistantSvc: assistantSvc,
		ecoTipsSvc:   ecoTipsSvc,
		feedbackSvc:  feedbackSvc,
		sessions:     service.NewSessionStore(service.DefaultSessionTTL, service.DefaultMaxSessions),
		repo:         repo,
		logger:       logger,
	}
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	database := "ok"
	if err := h.repo.Health(ctx); err != nil {
		h.logger.Warn("health check: repository unavailable", "error", err)
		database = "unavailable"
	}

	return c.JSON(fiber.Map{
		"status":   "ok",
		"service":  "smartcity-assistant",
		"version":  "1.0.0",
		"database": database,
	})
}

// GetWeather returns current conditions and the daily forecast for ?city=
func (h *Handler) GetWeather(c *fiber.Ctx) error {
	city, err := cityParam(c)
	if err != nil {
		return err
	}

	view, err := h.dashboardSvc.WeatherReport(c.Context(), city, c.QueryBool("summary", false))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    view,
	})
}

// GetAirQuality returns the AQI report for ?city=
func (h *Handler) GetAirQuality(c *fiber.Ctx) error {
	city, err := cityParam(c)
	if err != nil {
		return err
	}

	view, err := h.dashboardSvc.AirQualityReport(c.Context(), city)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    view,
	})
}

// GetTraffic returns the traffic flow report for ?city=
func (h *Handler) GetTraffic(c *fiber.Ctx) error {
	city, err := cityParam(c)
	if err != nil {
		return err
	}

	view, err := h.dashboardSvc.TrafficReport(c.Context(), city)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    view,
	})
}

// GetOverview returns every module for ?city= with per-section errors
func (h *Handler) GetOverview(c *fiber.Ctx) error {
	city, err := cityParam(c)
	if err != nil {
		return err
	}

	overview, err := h.dashboardSvc.Overview(c.Context(), city)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    overview,
	})
}

// GetHistoricalWeather returns weather history within a time range
func (h *Handler) GetHistoricalWeather(c *fiber.Ctx) error {
	from, to := historyWindow(c)

	data, err := h.repo.GetHistoricalWeather(c.Context(), from, to)
	if err != nil {
		h.logger.Error("failed to fetch weather history", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch weather history")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"count":   len(data),
	})
}

// GetHistoricalTraffic returns traffic history within a time range
func (h *Handler) GetHistoricalTraffic(c *fiber.Ctx) error {
	from, to := historyWindow(c)

	data, err := h.repo.GetHistoricalTraffic(c.Context(), from, to)
	if err != nil {
		h.logger.Error("failed to fetch traffic history", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch traffic history")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"count":   len(data),
	})
}

// GetHistoricalAirQuality returns air quality history within a time range
func (h *Handler) GetHistoricalAirQuality(c *fiber.Ctx) error {
	from, to := historyWindow(c)

	data, err := h.repo.GetHistoricalAirQuality(c.Context(), from, to)
	if err != nil {
		h.logger.Error("failed to fetch air quality history", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch air quality history")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"count":   len(data),
	})
}

func cityParam(c *fiber.Ctx) (string, error) {
	city := strings.Clone(strings.TrimSpace(c.Query("city")))
	if city == "" {
		return "", fmt.Errorf("query parameter city is required: %w", domain.ErrInvalidInput)
	}
	return city, nil
}

// historyWindow reads ?hours=, falling back to the default when out of range
func historyWindow(c *fiber.Ctx) (from, to time.Time) {
	hours := c.QueryInt("hours", defaultHistoryHours)
	if hours < 1 || hours > maxHistoryHours {
		hours = defaultHistoryHours
	}

	to = domain.Now()
	from = to.Add(-time.Duration(hours) * time.Hour)
	return from, to
}
