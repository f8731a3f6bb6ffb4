package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/smartcity/assistant/internal/adapter/kafka"
	"github.com/smartcity/assistant/internal/config"
	"github.com/smartcity/assistant/internal/delivery/http"
	"github.com/smartcity/assistant/internal/observability"
	"github.com/smartcity/assistant/internal/repository/csvfile"
	"github.com/smartcity/assistant/internal/repository/postgres"
	"github.com/smartcity/assistant/internal/service"
)

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)
	if envErr != nil {
		log.Info("no .env file found, using system environment")
	}

	metrics := observability.NewMetrics()

	// Dependency Injection: Repositories
	dataRepo, closeRepo := openRepository(cfg, log)
	defer closeRepo()

	feedbackLog := csvfile.NewFeedbackLog(cfg.FeedbackCSVPath)
	tipLog := csvfile.NewTipLog(cfg.EcoTipsCSVPath)

	// Dependency Injection: Services
	weatherSvc := service.NewWeatherService(cfg.OpenWeatherAPIKey, providerOptions(cfg, cfg.OpenWeatherURL, metrics, log))
	trafficSvc := service.NewTrafficService(cfg.TomTomAPIKey, providerOptions(cfg, cfg.TomTomURL, metrics, log))
	dashboardSvc := service.NewDashboardService(weatherSvc, weatherSvc, weatherSvc, trafficSvc, dataRepo, log, metrics)

	textBridge := service.NewTextBridge(service.TextBridgeConfig{
		APIKey:    cfg.GraniteAPIKey,
		ProjectID: cfg.GraniteProjectID,
		BaseURL:   cfg.GraniteURL,
		ModelID:   cfg.GraniteModelID,
		IAMURL:    cfg.IAMURL,
		Timeout:   3 * cfg.HTTPTimeout,
	})
	assistantSvc := service.NewAssistantService(textBridge, log, metrics)
	if cfg.GenerationEnabled() {
		dashboardSvc.SetForecastSummarizer(assistantSvc)
	} else {
		log.Warn("text generation not configured; chat and summaries will fail")
	}

	var reportWriter *kafka.Writer
	if cfg.KafkaEnabled() {
		reportWriter = kafka.NewWriter(cfg, log)
		dashboardSvc.SetPublisher(reportWriter)
		log.Info("publishing report events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaReportTopic)
	}

	ecoTipsSvc := service.NewEcoTipsService(tipLog, nil, metrics)
	feedbackSvc := service.NewFeedbackService(feedbackLog, metrics)

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "SmartCity Assistant API v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 4 * cfg.HTTPTimeout,
		BodyLimit:    12 << 20,
		ErrorHandler: http.NewErrorHandler(log),
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,Authorization," + http.SessionHeader,
		ExposeHeaders: http.SessionHeader,
	}))

	// Routes
	handler := http.NewHandler(dashboardSvc, assistantSvc, ecoTipsSvc, feedbackSvc, dataRepo, log)
	http.SetupRoutes(app, handler)

	// Graceful shutdown
	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		log.Warn("server forced to shutdown", "error", err)
	}
	dashboardSvc.WaitBackground()
	if reportWriter != nil {
		if err := reportWriter.Close(); err != nil {
			log.Warn("failed to close report writer", "error", err)
		}
	}
	log.Info("server exited gracefully")
}

// openRepository connects to PostgreSQL when configured and falls back to
// in-memory history otherwise.
func openRepository(cfg *config.Config, log *slog.Logger) (service.DataRepository, func()) {
	if cfg.DatabaseURL == "" {
		log.Info("DATABASE_URL not set, keeping history in memory")
		return postgres.NewMemoryRepository(), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err == nil {
		err = pool.Ping(ctx)
	}
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		log.Warn("could not connect to database, keeping history in memory", "error", err)
		return postgres.NewMemoryRepository(), func() {}
	}

	repo := postgres.NewPostgresRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		log.Warn("could not prepare schema, keeping history in memory", "error", err)
		return postgres.NewMemoryRepository(), func() {}
	}

	log.Info("connected to PostgreSQL")
	return repo, pool.Close
}

func providerOptions(cfg *config.Config, baseURL string, metrics *observability.Metrics, log *slog.Logger) service.ProviderOptions {
	return service.ProviderOptions{
		BaseURL: baseURL,
		Timeout: cfg.HTTPTimeout,
		RPS:     cfg.ProviderRPS,
		Burst:   cfg.ProviderBurst,
		Metrics: metrics,
		Logger:  log,
	}
}
