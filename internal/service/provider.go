package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/smartcity/assistant/internal/domain"
	"github.com/smartcity/assistant/internal/observability"
)

var errMissingAPIKey = errors.New("missing API key")

// ProviderOptions configures an upstream provider client
type ProviderOptions struct {
	BaseURL string
	Timeout time.Duration
	// RPS and Burst bound the request rate; RPS <= 0 disables limiting.
	RPS     float64
	Burst   int
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// providerClient issues rate-limited, instrumented GET requests to one provider
type providerClient struct {
	name       string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

func newProviderClient(name string, opts ProviderOptions) *providerClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}

	c := &providerClient{
		name:    name,
		baseURL: opts.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger.With("provider", name),
	}
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return c
}

// getJSON fetches baseURL+path and decodes the body into out. Transport
// failures and non-2xx responses come back as *domain.FetchError.
func (c *providerClient) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.fail("error", &domain.FetchError{Provider: c.name, Err: fmt.Errorf("rate limit wait canceled: %w", err)})
		}
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return c.fail("error", &domain.FetchError{Provider: c.name, Err: fmt.Errorf("failed to create request: %w", err)})
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ProviderDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	if err != nil {
		return c.fail("error", &domain.FetchError{Provider: c.name, Err: redact(err)})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail("error", &domain.FetchError{Provider: c.name, Err: fmt.Errorf("failed to read response body: %w", err)})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome := "error"
		if resp.StatusCode == http.StatusNotFound {
			outcome = "not_found"
		}
		return c.fail(outcome, &domain.FetchError{
			Provider:   c.name,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("API error: %s", truncateBody(body)),
		})
	}

	if err := json.Unmarshal(body, out); err != nil {
		return c.fail("malformed", fmt.Errorf("%s: failed to decode response: %w", c.name, errors.Join(err, domain.Malformed(c.name, "body"))))
	}

	c.metrics.ProviderRequests.WithLabelValues(c.name, "success").Inc()
	return nil
}

func (c *providerClient) fail(outcome string, err error) error {
	c.metrics.ProviderRequests.WithLabelValues(c.name, outcome).Inc()
	c.logger.Warn("provider request failed", "outcome", outcome, "error", err)
	return err
}

// malformed records a response that decoded but lacked a required field
func (c *providerClient) malformed(field string) error {
	c.metrics.ProviderRequests.WithLabelValues(c.name, "malformed").Inc()
	err := domain.Malformed(c.name, field)
	c.logger.Warn("provider response malformed", "field", field)
	return err
}

// redact strips the request URL, which carries the API key, from transport errors
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s request: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

func truncateBody(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

// responseCode decodes OpenWeatherMap's "cod" field, which is a number on
// success and a string on most errors.
type responseCode int

func (r *responseCode) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*r = responseCode(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("cod: %w", err)
	}
	if s == "" {
		*r = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("cod: %w", err)
	}
	*r = responseCode(n)
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
