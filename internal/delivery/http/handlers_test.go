package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/assistant/internal/domain"
	"github.com/smartcity/assistant/internal/observability"
	"github.com/smartcity/assistant/internal/repository/csvfile"
	"github.com/smartcity/assistant/internal/repository/postgres"
	"github.com/smartcity/assistant/internal/service"
)

var london = domain.Location{City: "London", Country: "GB", Latitude: 51.5085, Longitude: -0.1257}

// fakeUpstream stands in for every provider and the text generator
type fakeUpstream struct {
	mu    sync.Mutex
	calls map[string]int

	airErr     error
	trafficErr error
	genErr     error
}

func (f *fakeUpstream) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeUpstream) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeUpstream) ResolveLocation(ctx context.Context, city string) (domain.Location, domain.CurrentConditions, error) {
	f.record("resolve")
	if city != "London" {
		return domain.Location{}, domain.CurrentConditions{}, fmt.Errorf("weather: %q: %w", city, domain.ErrLocationNotFound)
	}
	return london, domain.CurrentConditions{Temperature: 11.2, Humidity: 77, Pressure: 1009, WindSpeed: 5.1, Description: "overcast clouds"}, nil
}

func (f *fakeUpstream) FetchForecast(ctx context.Context, loc domain.Location) ([]domain.ForecastEntry, error) {
	f.record("forecast")
	return []domain.ForecastEntry{
		{Date: "2024-05-01", MinTemp: 8, MaxTemp: 13, Humidity: 70, WindSpeed: 4, Description: "light rain"},
		{Date: "2024-05-02", MinTemp: 9, MaxTemp: 15, Humidity: 65, WindSpeed: 3, Description: "clear sky"},
	}, nil
}

func (f *fakeUpstream) FetchAirQuality(ctx context.Context, loc domain.Location) (domain.AirQuality, error) {
	f.record("air")
	return domain.AirQuality{AQI: 3, Pollutants: map[string]float64{"no2": 21.5}}, f.airErr
}

func (f *fakeUpstream) FetchTraffic(ctx context.Context, loc domain.Location) (domain.TrafficSample, error) {
	f.record("traffic")
	return domain.TrafficSample{CurrentSpeed: 25, FreeFlowSpeed: 50, CurrentTravelTime: 200, FreeFlowTravelTime: 100}, f.trafficErr
}

func (f *fakeUpstream) Generate(ctx context.Context, prompt string, params domain.GenerationParams) (string, error) {
	f.record("generate")
	if f.genErr != nil {
		return "", f.genErr
	}
	return "generated reply", nil
}

type testEnv struct {
	app       *fiber.App
	upstream  *fakeUpstream
	dashboard *service.DashboardService
	handler   *Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	up := &fakeUpstream{calls: map[string]int{}}
	repo := postgres.NewMemoryRepository()
	dir := t.TempDir()

	dashboard := service.NewDashboardService(up, up, up, up, repo, logger, metrics)
	assistant := service.NewAssistantService(up, logger, metrics)
	dashboard.SetForecastSummarizer(assistant)
	ecoTips := service.NewEcoTipsService(csvfile.NewTipLog(filepath.Join(dir, "tips.csv")), nil, metrics)
	feedback := service.NewFeedbackService(csvfile.NewFeedbackLog(filepath.Join(dir, "feedback.csv")), metrics)

	app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(logger)})
	handler := NewHandler(dashboard, assistant, ecoTips, feedback, repo, logger)
	SetupRoutes(app, handler)
	t.Cleanup(dashboard.WaitBackground)

	return &testEnv{app: app, upstream: up, dashboard: dashboard, handler: handler}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Count   int             `json:"count"`
	Error   bool            `json:"error"`
	Kind    string          `json:"kind"`
	Message string          `json:"message"`
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader, headers map[string]string) (int, envelope, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env, map[string]string{SessionHeader: resp.Header.Get(SessionHeader)}
}

func jsonBody(t *testing.T, v any) (io.Reader, map[string]string) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data), map[string]string{fiber.HeaderContentType: fiber.MIMEApplicationJSON}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(fiber.MethodGet, "/health", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["database"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestGetWeather(t *testing.T) {
	env := newTestEnv(t)

	status, body, _ := env.do(t, fiber.MethodGet, "/api/v1/weather?city=London", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.True(t, body.Success)

	var view struct {
		Location domain.Location `json:"location"`
		Forecast []struct {
			Date string `json:"date"`
		} `json:"forecast"`
		Summary string `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &view))
	assert.Equal(t, "London", view.Location.City)
	assert.Len(t, view.Forecast, 2)
	assert.Empty(t, view.Summary)
	assert.Zero(t, env.upstream.count("generate"))
}

func TestGetWeather_WithSummary(t *testing.T) {
	env := newTestEnv(t)

	status, body, _ := env.do(t, fiber.MethodGet, "/api/v1/weather?city=London&summary=true", nil, nil)
	require.Equal(t, fiber.StatusOK, status)

	var view struct {
		Summary string `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &view))
	assert.Equal(t, "generated reply", view.Summary)
}

func TestCityReports_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		status int
		kind   string
	}{
		{"missing city", "/api/v1/weather", fiber.StatusBadRequest, "invalid_input"},
		{"blank city", "/api/v1/traffic?city=%20%20", fiber.StatusBadRequest, "invalid_input"},
		{"unknown city weather", "/api/v1/weather?city=Nowhere123", fiber.StatusNotFound, "location_not_found"},
		{"unknown city air", "/api/v1/air-quality?city=Nowhere123", fiber.StatusNotFound, "location_not_found"},
		{"unknown city overview", "/api/v1/overview?city=Nowhere123", fiber.StatusNotFound, "location_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			status, body, _ := env.do(t, fiber.MethodGet, tt.target, nil, nil)
			assert.Equal(t, tt.status, status)
			assert.True(t, body.Error)
			assert.Equal(t, tt.kind, body.Kind)
			assert.NotEmpty(t, body.Message)

			assert.Zero(t, env.upstream.count("forecast"))
			assert.Zero(t, env.upstream.count("air"))
			assert.Zero(t, env.upstream.count("traffic"))
		})
	}
}

func TestGetTraffic_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.trafficErr = &domain.FetchError{Provider: service.ProviderTomTom, StatusCode: 403, Err: errors.New("forbidden")}

	status, body, _ := env.do(t, fiber.MethodGet, "/api/v1/traffic?city=London", nil, nil)
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.Equal(t, "fetch_failed", body.Kind)
}

func TestGetAirQuality_Malformed(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.airErr = domain.Malformed(service.ProviderOpenWeatherMap, "list[0].main.aqi")

	status, body, _ := env.do(t, fiber.MethodGet, "/api/v1/air-quality?city=London", nil, nil)
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.Equal(t, "malformed_response", body.Kind)
}

func TestGetOverview_SectionError(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.airErr = &domain.FetchError{Provider: service.ProviderOpenWeatherMap, Err: errors.New("timeout")}

	status, body, _ := env.do(t, fiber.MethodGet, "/api/v1/overview?city=London", nil, nil)
	require.Equal(t, fiber.StatusOK, status)

	var overview service.Overview
	require.NoError(t, json.Unmarshal(body.Data, &overview))
	assert.NotNil(t, overview.Weather.Data)
	require.NotNil(t, overview.AirQuality.Error)
	assert.Equal(t, "fetch_failed", overview.AirQuality.Error.Kind)
	require.NotNil(t, overview.Traffic.Data)
	assert.Equal(t, "Severe", overview.Traffic.Data.CongestionLevel)
	assert.Equal(t, 1, env.upstream.count("resolve"))
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t)

	status, _, _ := env.do(t, fiber.MethodGet, "/api/v1/weather?city=London", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	status, _, _ = env.do(t, fiber.MethodGet, "/api/v1/traffic?city=London", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	env.dashboard.WaitBackground()

	for _, tt := range []struct {
		target string
		count  int
	}{
		{"/api/v1/history/weather", 1},
		{"/api/v1/history/traffic?hours=2", 1},
		{"/api/v1/history/air-quality?hours=9999", 0},
	} {
		status, body, _ := env.do(t, fiber.MethodGet, tt.target, nil, nil)
		assert.Equal(t, fiber.StatusOK, status, tt.target)
		assert.Equal(t, tt.count, body.Count, tt.target)
	}
}

func TestChat_SessionRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	reqBody, headers := jsonBody(t, chatRequest{Message: "How can my city save water?"})
	status, body, respHeaders := env.do(t, fiber.MethodPost, "/api/v1/chat", reqBody, headers)
	require.Equal(t, fiber.StatusOK, status)
	sessionID := respHeaders[SessionHeader]
	require.NotEmpty(t, sessionID)

	var first struct {
		SessionID  string             `json:"session_id"`
		Reply      string             `json:"reply"`
		Transcript []service.ChatTurn `json:"transcript"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &first))
	assert.Equal(t, sessionID, first.SessionID)
	assert.Equal(t, "generated reply", first.Reply)
	assert.Len(t, first.Transcript, 2)

	reqBody, headers = jsonBody(t, chatRequest{Message: "And energy?"})
	headers[SessionHeader] = sessionID
	status, _, _ = env.do(t, fiber.MethodPost, "/api/v1/chat", reqBody, headers)
	require.Equal(t, fiber.StatusOK, status)

	status, body, _ = env.do(t, fiber.MethodGet, "/api/v1/chat", nil, map[string]string{SessionHeader: sessionID})
	require.Equal(t, fiber.StatusOK, status)
	var transcript struct {
		Transcript []service.ChatTurn `json:"transcript"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &transcript))
	require.Len(t, transcript.Transcript, 4)
	assert.Equal(t, service.ChatTurn{Role: service.RoleUser, Content: "And energy?"}, transcript.Transcript[2])

	status, _, _ = env.do(t, fiber.MethodDelete, "/api/v1/chat", nil, map[string]string{SessionHeader: sessionID})
	require.Equal(t, fiber.StatusOK, status)
	_, body, _ = env.do(t, fiber.MethodGet, "/api/v1/chat", nil, map[string]string{SessionHeader: sessionID})
	require.NoError(t, json.Unmarshal(body.Data, &transcript))
	assert.Empty(t, transcript.Transcript)
}

func TestChat_GenerationFailure(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.genErr = &domain.FetchError{Provider: service.ProviderWatsonx, StatusCode: 500, Err: errors.New("down")}

	reqBody, headers := jsonBody(t, chatRequest{Message: "hello"})
	headers[SessionHeader] = "session-1"
	status, body, respHeaders := env.do(t, fiber.MethodPost, "/api/v1/chat", reqBody, headers)
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.Equal(t, "fetch_failed", body.Kind)
	assert.Equal(t, "session-1", respHeaders[SessionHeader])

	_, body, _ = env.do(t, fiber.MethodGet, "/api/v1/chat", nil, map[string]string{SessionHeader: "session-1"})
	var transcript struct {
		Transcript []service.ChatTurn `json:"transcript"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &transcript))
	require.Len(t, transcript.Transcript, 2)
	assert.Equal(t, "Sorry, I encountered an issue.", transcript.Transcript[1].Content)
}

func TestGetChat_UnknownSessionIsNotStored(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 50; i++ {
		status, body, respHeaders := env.do(t, fiber.MethodGet, "/api/v1/chat", nil, nil)
		require.Equal(t, fiber.StatusOK, status)
		assert.Empty(t, respHeaders[SessionHeader])
		assert.JSONEq(t, `{"session_id":"","transcript":[]}`, string(body.Data))
	}

	status, body, respHeaders := env.do(t, fiber.MethodGet, "/api/v1/chat", nil, map[string]string{SessionHeader: "never-seen"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, respHeaders[SessionHeader])
	assert.JSONEq(t, `{"session_id":"never-seen","transcript":[]}`, string(body.Data))

	assert.Zero(t, env.handler.sessions.Len())
}

func TestClearChat_RequiresSession(t *testing.T) {
	env := newTestEnv(t)

	status, body, _ := env.do(t, fiber.MethodDelete, "/api/v1/chat", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", body.Kind)
}

func TestSummarize(t *testing.T) {
	env := newTestEnv(t)

	reqBody, headers := jsonBody(t, summarizeRequest{Text: "The council approved new bike lanes."})
	status, body, _ := env.do(t, fiber.MethodPost, "/api/v1/summarize", reqBody, headers)
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"summary":"generated reply"}`, string(body.Data))

	reqBody, headers = jsonBody(t, summarizeRequest{Text: "   "})
	status, body, _ = env.do(t, fiber.MethodPost, "/api/v1/summarize", reqBody, headers)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", body.Kind)
}

func multipartFile(t *testing.T, filename, content string) (io.Reader, map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, map[string]string{fiber.HeaderContentType: w.FormDataContentType()}
}

func TestSummarizeDocument(t *testing.T) {
	env := newTestEnv(t)

	reqBody, headers := multipartFile(t, "policy.txt", "Parking fees will rise in the city centre.")
	status, body, _ := env.do(t, fiber.MethodPost, "/api/v1/summarize/document", reqBody, headers)
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"filename":"policy.txt","summary":"generated reply"}`, string(body.Data))

	reqBody, headers = multipartFile(t, "roads.xlsx", "PK")
	status, body, _ = env.do(t, fiber.MethodPost, "/api/v1/summarize/document", reqBody, headers)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", body.Kind)
	assert.Contains(t, body.Message, "unsupported document type")

	reqBody, headers = multipartFile(t, "policy.pdf", "%PDF-1.4")
	status, body, _ = env.do(t, fiber.MethodPost, "/api/v1/summarize/document", reqBody, headers)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", body.Kind)
	assert.NotContains(t, body.Message, "unsupported document type")
}

func TestEcoTips(t *testing.T) {
	env := newTestEnv(t)

	status, body, _ := env.do(t, fiber.MethodGet, "/api/v1/eco-tips/categories", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	var categories []string
	require.NoError(t, json.Unmarshal(body.Data, &categories))
	assert.Len(t, categories, 4)

	status, body, _ = env.do(t, fiber.MethodGet, "/api/v1/eco-tips/random?category=Water%20Saving", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	var tip struct {
		Category string `json:"category"`
		Tip      string `json:"tip"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &tip))
	assert.Equal(t, "Water Saving", tip.Category)
	assert.NotEmpty(t, tip.Tip)

	status, body, _ = env.do(t, fiber.MethodGet, "/api/v1/eco-tips/random?category=Gardening", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", body.Kind)

	reqBody, headers := jsonBody(t, tipRequest{Category: "Transportation", Tip: "Cycle to work"})
	status, _, _ = env.do(t, fiber.MethodPost, "/api/v1/eco-tips", reqBody, headers)
	assert.Equal(t, fiber.StatusCreated, status)
}

func TestFeedback(t *testing.T) {
	env := newTestEnv(t)

	reqBody, headers := jsonBody(t, feedbackRequest{Name: "Aida", City: "Almaty", Feedback: "Helpful traffic view"})
	status, body, _ := env.do(t, fiber.MethodPost, "/api/v1/feedback", reqBody, headers)
	require.Equal(t, fiber.StatusCreated, status)
	var entry domain.FeedbackEntry
	require.NoError(t, json.Unmarshal(body.Data, &entry))
	assert.Equal(t, domain.DefaultRating, entry.Rating)

	reqBody, headers = jsonBody(t, feedbackRequest{Name: "Ben", Feedback: "x", Rating: 9})
	status, body, _ = env.do(t, fiber.MethodPost, "/api/v1/feedback", reqBody, headers)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", body.Kind)

	status, body, _ = env.do(t, fiber.MethodGet, "/api/v1/feedback", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1, body.Count)
}
