package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smartcity/assistant/internal/domain"
	"github.com/smartcity/assistant/internal/observability"
	"github.com/smartcity/assistant/pkg/utils"
)

// Generation limits and prompts.
const (
	maxSummaryInput = 5000

	chatApology = "Sorry, I encountered an issue."

	chatPrompt = `You are a helpful smart city assistant focused on sustainability and policy advice.
Provide responses as bullet points where helpful, using a friendly tone.

Input: %s
Response:`

	summaryPrompt = "Summarize this text clearly:\n\n%s"

	forecastPrompt = "You are a weather forecaster.\n\nGive a natural language summary of the upcoming 5-day weather forecast for %s:\n"
)

var (
	chatParams = domain.GenerationParams{
		DecodingMethod: "sample",
		MaxNewTokens:   512,
		Temperature:    0.7,
		TopP:           0.9,
		StopSequences:  []string{"<|endoftext|>", "User:"},
	}
	summaryParams = domain.GenerationParams{
		DecodingMethod: "sample",
		MaxNewTokens:   300,
		Temperature:    0.5,
		TopP:           0.9,
	}
	forecastParams = domain.GenerationParams{
		DecodingMethod: "sample",
		MaxNewTokens:   300,
		Temperature:    0.7,
		TopP:           0.9,
	}
)

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one message in a transcript
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session store defaults.
const (
	DefaultSessionTTL  = 24 * time.Hour
	DefaultMaxSessions = 10000
)

// ChatSession is the per-session chat context. It replaces ambient UI
// session state so handlers can be exercised without a browser session.
type ChatSession struct {
	ID string

	mu    sync.Mutex
	turns []ChatTurn

	lastSeen time.Time // guarded by SessionStore.mu
}

func (c *ChatSession) append(role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, ChatTurn{Role: role, Content: content})
}

// Transcript returns a copy of the turns so far
func (c *ChatSession) Transcript() []ChatTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatTurn, len(c.turns))
	copy(out, c.turns)
	return out
}

// SessionStore keeps chat sessions in memory keyed by session id. Sessions
// idle longer than the TTL expire, and once the store is full the least
// recently used session makes room for a new one.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*ChatSession
	ttl      time.Duration
	limit    int
}

// NewSessionStore creates an empty session store. Non-positive arguments
// fall back to DefaultSessionTTL and DefaultMaxSessions.
func NewSessionStore(ttl time.Duration, limit int) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if limit <= 0 {
		limit = DefaultMaxSessions
	}
	return &SessionStore{
		sessions: make(map[string]*ChatSession),
		ttl:      ttl,
		limit:    limit,
	}
}

// Get returns the session for id, creating it when absent or expired. An
// empty id allocates a fresh one.
func (s *SessionStore) Get(id string) *ChatSession {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.live(id); ok {
		session.lastSeen = domain.Now()
		return session
	}

	s.makeRoom()
	session := &ChatSession{ID: id, lastSeen: domain.Now()}
	s.sessions[id] = session
	return session
}

// Lookup returns the live session for id without creating one
func (s *SessionStore) Lookup(id string) (*ChatSession, bool) {
	if id == "" {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.live(id)
	if ok {
		session.lastSeen = domain.Now()
	}
	return session, ok
}

// Delete drops the session and its transcript
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports how many sessions are held, expired ones included
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) live(id string) (*ChatSession, bool) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if s.expired(session) {
		delete(s.sessions, id)
		return nil, false
	}
	return session, true
}

func (s *SessionStore) expired(c *ChatSession) bool {
	return domain.Clock().Since(c.lastSeen) > s.ttl
}

// makeRoom sweeps expired sessions once the store is full, then evicts the
// least recently used session if that was not enough. Caller holds mu.
func (s *SessionStore) makeRoom() {
	if len(s.sessions) < s.limit {
		return
	}

	var oldest *ChatSession
	for id, session := range s.sessions {
		if s.expired(session) {
			delete(s.sessions, id)
			continue
		}
		if oldest == nil || session.lastSeen.Before(oldest.lastSeen) {
			oldest = session
		}
	}
	if len(s.sessions) >= s.limit && oldest != nil {
		delete(s.sessions, oldest.ID)
	}
}

// AssistantService wraps the text generator for chat and summarization
type AssistantService struct {
	generator domain.TextGenerator
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewAssistantService creates a new assistant service
func NewAssistantService(generator domain.TextGenerator, logger *slog.Logger, metrics *observability.Metrics) *AssistantService {
	return &AssistantService{
		generator: generator,
		logger:    logger,
		metrics:   metrics,
	}
}

// Chat appends the user's message to the session and asks the model for a
// reply. On failure the apology is recorded in the transcript and the error
// is returned.
func (a *AssistantService) Chat(ctx context.Context, session *ChatSession, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("chat: message is required: %w", domain.ErrInvalidInput)
	}

	session.append(RoleUser, message)

	reply, err := a.generate(ctx, "chat", fmt.Sprintf(chatPrompt, message), chatParams)
	if err != nil {
		session.append(RoleAssistant, chatApology)
		return "", fmt.Errorf("chat: %w", err)
	}

	session.append(RoleAssistant, reply)
	return reply, nil
}

// Summarize returns a model summary of text, truncated to the first 5000 characters
func (a *AssistantService) Summarize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("summarize: text is required: %w", domain.ErrInvalidInput)
	}

	summary, err := a.generate(ctx, "summary", fmt.Sprintf(summaryPrompt, utils.Truncate(text, maxSummaryInput)), summaryParams)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return summary, nil
}

// SummarizeForecast describes the next five days, sampling one interval per 24 hours
func (a *AssistantService) SummarizeForecast(ctx context.Context, city string, entries []domain.ForecastEntry) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, forecastPrompt, city)
	for i := 0; i < len(entries) && i < 5*8; i += 8 {
		e := entries[i]
		fmt.Fprintf(&b, "%s: %s, %.1f°C\n", e.Timestamp.UTC().Format("2006-01-02 15:04:05"), e.Description, e.Temperature)
	}

	summary, err := a.generate(ctx, "forecast_summary", b.String(), forecastParams)
	if err != nil {
		return "", fmt.Errorf("forecast summary: %w", err)
	}
	return summary, nil
}

func (a *AssistantService) generate(ctx context.Context, purpose, prompt string, params domain.GenerationParams) (string, error) {
	out, err := a.generator.Generate(ctx, prompt, params)
	if err != nil {
		a.metrics.Generations.WithLabelValues(purpose, "error").Inc()
		a.logger.Warn("text generation failed", "purpose", purpose, "error", err)
		return "", err
	}
	a.metrics.Generations.WithLabelValues(purpose, "success").Inc()
	return out, nil
}

var _ ForecastSummarizer = (*AssistantService)(nil)
