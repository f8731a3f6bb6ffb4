package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/smartcity/assistant/internal/domain"
)

// ProviderWatsonx names the hosted text generation provider
const ProviderWatsonx = "watsonx"

const (
	generationAPIVersion = "2023-05-29"
	// tokenRefreshMargin renews IAM tokens this long before they expire.
	tokenRefreshMargin = time.Minute
)

var errGenerationDisabled = errors.New("text generation is not configured")

// TextBridgeConfig holds the credential bundle for the generation endpoint
type TextBridgeConfig struct {
	APIKey    string
	ProjectID string
	BaseURL   string
	ModelID   string
	IAMURL    string
	Timeout   time.Duration
}

// TextBridge handles communication with the hosted Granite model. It trades
// the API key for an IAM bearer token and caches it until shortly before expiry.
type TextBridge struct {
	cfg        TextBridgeConfig
	httpClient *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewTextBridge creates a new text generation bridge
func NewTextBridge(cfg TextBridgeConfig) *TextBridge {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &TextBridge{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type generationRequest struct {
	Input      string                  `json:"input"`
	ModelID    string                  `json:"model_id"`
	ProjectID  string                  `json:"project_id"`
	Parameters domain.GenerationParams `json:"parameters"`
}

type generationResponse struct {
	Results []struct {
		GeneratedText string `json:"generated_text"`
	} `json:"results"`
}

type iamTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Generate sends prompt to the model and returns the generated text
func (b *TextBridge) Generate(ctx context.Context, prompt string, params domain.GenerationParams) (string, error) {
	if b.cfg.APIKey == "" || b.cfg.BaseURL == "" || b.cfg.ModelID == "" {
		return "", &domain.FetchError{Provider: ProviderWatsonx, Err: errGenerationDisabled}
	}

	token, err := b.accessToken(ctx)
	if err != nil {
		return "", err
	}

	if params.StopSequences == nil {
		params.StopSequences = []string{}
	}
	body, err := json.Marshal(generationRequest{
		Input:      prompt,
		ModelID:    b.cfg.ModelID,
		ProjectID:  b.cfg.ProjectID,
		Parameters: params,
	})
	if err != nil {
		return "", fmt.Errorf("text_bridge: failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/ml/v1/text/generation?version=%s", b.cfg.BaseURL, generationAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("text_bridge: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	var genResp generationResponse
	if err := b.do(req, &genResp); err != nil {
		return "", err
	}

	if len(genResp.Results) == 0 {
		return "", domain.Malformed(ProviderWatsonx, "results[0].generated_text")
	}
	return strings.TrimSpace(genResp.Results[0].GeneratedText), nil
}

// accessToken returns a cached IAM token or exchanges the API key for a new one
func (b *TextBridge) accessToken(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := domain.Now()
	if b.token != "" && now.Add(tokenRefreshMargin).Before(b.tokenExpiry) {
		return b.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ibm:params:oauth:grant-type:apikey")
	form.Set("apikey", b.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.IAMURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("text_bridge: failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var tokenResp iamTokenResponse
	if err := b.do(req, &tokenResp); err != nil {
		return "", fmt.Errorf("text_bridge: token exchange: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", domain.Malformed(ProviderWatsonx, "access_token")
	}

	b.token = tokenResp.AccessToken
	b.tokenExpiry = now.Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return b.token, nil
}

func (b *TextBridge) do(req *http.Request, out any) error {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return &domain.FetchError{Provider: ProviderWatsonx, Err: redact(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.FetchError{Provider: ProviderWatsonx, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return &domain.FetchError{
			Provider:   ProviderWatsonx,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("API error: %s", truncateBody(body)),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("text_bridge: failed to decode response: %w", errors.Join(err, domain.Malformed(ProviderWatsonx, "body")))
	}
	return nil
}

var _ domain.TextGenerator = (*TextBridge)(nil)
