package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, handler *Handler) {
	// Health check and metrics
	app.Get("/health", handler.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API v1 routes
	api := app.Group("/api/v1")
	{
		// City reports
		api.Get("/weather", handler.GetWeather)
		api.Get("/air-quality", handler.GetAirQuality)
		api.Get("/traffic", handler.GetTraffic)
		api.Get("/overview", handler.GetOverview)

		// Snapshot history
		history := api.Group("/history")
		history.Get("/weather", handler.GetHistoricalWeather)
		history.Get("/traffic", handler.GetHistoricalTraffic)
		history.Get("/air-quality", handler.GetHistoricalAirQuality)

		// Assistant (hosted text generation)
		api.Post("/chat", handler.Chat)
		api.Get("/chat", handler.GetChat)
		api.Delete("/chat", handler.ClearChat)
		api.Post("/summarize", handler.Summarize)
		api.Post("/summarize/document", handler.SummarizeDocument)

		// Community
		api.Get("/eco-tips/categories", handler.GetEcoTipCategories)
		api.Get("/eco-tips/random", handler.GetRandomEcoTip)
		api.Post("/eco-tips", handler.SubmitEcoTip)
		api.Post("/feedback", handler.SubmitFeedback)
		api.Get("/feedback", handler.ListFeedback)
	}
}
