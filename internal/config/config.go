package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	Port     string
	Env      string
	LogLevel string
	// LogFormat is "json" or "text".
	LogFormat string

	HTTPTimeout     time.Duration
	ShutdownTimeout time.Duration

	OpenWeatherAPIKey string
	OpenWeatherURL    string
	TomTomAPIKey      string
	TomTomURL         string

	// Upstream rate limit shared by each provider client.
	ProviderRPS   float64
	ProviderBurst int

	// Hosted text generation (IBM watsonx Granite).
	GraniteAPIKey    string
	GraniteProjectID string
	GraniteURL       string
	GraniteModelID   string
	IAMURL           string

	DatabaseURL string

	FeedbackCSVPath string
	EcoTipsCSVPath  string

	KafkaBrokers     []string
	KafkaReportTopic string
}

// GenerationEnabled reports whether the text generation collaborator is configured.
func (c *Config) GenerationEnabled() bool {
	return c.GraniteAPIKey != "" && c.GraniteURL != "" && c.GraniteModelID != ""
}

// KafkaEnabled reports whether report events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	httpTimeout, err := parseDuration("HTTP_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	rps, err := strconv.ParseFloat(getEnv("PROVIDER_RPS", "1"), 64)
	if err != nil || rps <= 0 {
		return nil, errors.New("invalid PROVIDER_RPS")
	}
	burst, err := strconv.Atoi(getEnv("PROVIDER_BURST", "5"))
	if err != nil || burst < 1 {
		return nil, errors.New("invalid PROVIDER_BURST")
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("GO_ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		HTTPTimeout:     httpTimeout,
		ShutdownTimeout: shutdownTimeout,

		// openweathermap_api is the legacy dashboard key name.
		OpenWeatherAPIKey: getEnv("OPENWEATHER_API_KEY", os.Getenv("openweathermap_api")),
		OpenWeatherURL:    getEnv("OPENWEATHER_URL", "https://api.openweathermap.org/data/2.5"),
		TomTomAPIKey:      getEnv("TOMTOM_API_KEY", ""),
		TomTomURL:         getEnv("TOMTOM_URL", "https://api.tomtom.com/traffic/services/4"),
		ProviderRPS:       rps,
		ProviderBurst:     burst,

		GraniteAPIKey:    getEnv("IBM_GRANITE_API_KEY", ""),
		GraniteProjectID: getEnv("IBM_GRANITE_PROJECT_ID", ""),
		GraniteURL:       strings.TrimRight(getEnv("IBM_GRANITE_URL", ""), "/"),
		GraniteModelID:   getEnv("MODEL_ID", ""),
		IAMURL:           getEnv("IBM_IAM_URL", "https://iam.cloud.ibm.com/identity/token"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		FeedbackCSVPath: getEnv("FEEDBACK_CSV_PATH", "feedback_data.csv"),
		EcoTipsCSVPath:  getEnv("ECO_TIPS_CSV_PATH", "user_eco_tips.csv"),

		KafkaBrokers:     parseList(os.Getenv("KAFKA_BROKERS")),
		KafkaReportTopic: getEnv("KAFKA_REPORT_TOPIC", "city-reports"),
	}

	switch cfg.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q", cfg.LogFormat)
	}
	if cfg.GraniteAPIKey != "" && cfg.GraniteProjectID == "" {
		return nil, errors.New("IBM_GRANITE_API_KEY is set but IBM_GRANITE_PROJECT_ID is not")
	}
	if cfg.FeedbackCSVPath == "" || cfg.EcoTipsCSVPath == "" {
		return nil, errors.New("FEEDBACK_CSV_PATH and ECO_TIPS_CSV_PATH must not be empty")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
