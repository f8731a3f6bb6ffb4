package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/smartcity/assistant/internal/domain"
	"github.com/smartcity/assistant/internal/observability"
)

// ecoTipCategories keeps the display order of the canned tips.
var ecoTipCategories = []string{"Water Saving", "Energy Efficiency", "Waste Reduction", "Transportation"}

var ecoTips = map[string][]string{
	"Water Saving": {
		"Turn off the tap while brushing your teeth.",
		"Fix dripping faucets to save thousands of liters.",
		"Use a bucket instead of a hose for washing your car.",
	},
	"Energy Efficiency": {
		"Switch off appliances when not in use.",
		"Use LED lights instead of incandescent bulbs.",
		"Unplug chargers when not needed.",
	},
	"Waste Reduction": {
		"Avoid single-use plastics.",
		"Compost your food waste.",
		"Buy in bulk to reduce packaging waste.",
	},
	"Transportation": {
		"Use public transport or carpool when possible.",
		"Walk or cycle short distances.",
		"Keep your tires inflated to save fuel.",
	},
}

// EcoTipsService serves canned sustainability tips and records user tips
type EcoTipsService struct {
	store   domain.TipStore
	metrics *observability.Metrics

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEcoTipsService creates a tips service. rng may be nil for a time-seeded source.
func NewEcoTipsService(store domain.TipStore, rng *rand.Rand, metrics *observability.Metrics) *EcoTipsService {
	if rng == nil {
		rng = rand.New(rand.NewSource(domain.Now().UnixNano()))
	}
	return &EcoTipsService{store: store, rng: rng, metrics: metrics}
}

// Categories lists the tip categories in display order
func (s *EcoTipsService) Categories() []string {
	out := make([]string, len(ecoTipCategories))
	copy(out, ecoTipCategories)
	return out
}

// RandomTip picks one canned tip from category
func (s *EcoTipsService) RandomTip(category string) (string, error) {
	tips, ok := ecoTips[category]
	if !ok {
		return "", fmt.Errorf("eco tips: unknown category %q: %w", category, domain.ErrInvalidInput)
	}

	s.mu.Lock()
	i := s.rng.Intn(len(tips))
	s.mu.Unlock()

	return tips[i], nil
}

// SubmitTip appends a user tip to the tip log
func (s *EcoTipsService) SubmitTip(ctx context.Context, category, tip string) (domain.EcoTip, error) {
	if _, ok := ecoTips[category]; !ok {
		return domain.EcoTip{}, fmt.Errorf("eco tips: unknown category %q: %w", category, domain.ErrInvalidInput)
	}
	tip = strings.TrimSpace(tip)
	if tip == "" {
		return domain.EcoTip{}, fmt.Errorf("eco tips: please enter a valid tip: %w", domain.ErrInvalidInput)
	}

	entry := domain.EcoTip{Timestamp: domain.Now(), Category: category, Tip: tip}
	if err := s.store.AppendTip(ctx, entry); err != nil {
		return domain.EcoTip{}, fmt.Errorf("eco tips: failed to save tip: %w", err)
	}
	s.metrics.TipsSaved.Inc()
	return entry, nil
}

// FeedbackService validates and records feedback form submissions
type FeedbackService struct {
	store   domain.FeedbackStore
	metrics *observability.Metrics
}

// NewFeedbackService creates a new feedback service
func NewFeedbackService(store domain.FeedbackStore, metrics *observability.Metrics) *FeedbackService {
	return &FeedbackService{store: store, metrics: metrics}
}

// Submit stamps and appends a feedback entry. A zero rating means the
// form default.
func (s *FeedbackService) Submit(ctx context.Context, entry domain.FeedbackEntry) (domain.FeedbackEntry, error) {
	if entry.Rating == 0 {
		entry.Rating = domain.DefaultRating
	}
	entry.Name = strings.TrimSpace(entry.Name)
	entry.City = strings.TrimSpace(entry.City)
	entry.Feedback = strings.TrimSpace(entry.Feedback)

	if err := entry.Validate(); err != nil {
		return domain.FeedbackEntry{}, err
	}

	entry.Timestamp = domain.Now()
	if err := s.store.AppendFeedback(ctx, entry); err != nil {
		return domain.FeedbackEntry{}, fmt.Errorf("feedback: failed to save: %w", err)
	}
	s.metrics.FeedbackSaved.Inc()
	return entry, nil
}

// List returns every recorded feedback entry, oldest first
func (s *FeedbackService) List(ctx context.Context) ([]domain.FeedbackEntry, error) {
	entries, err := s.store.ListFeedback(ctx)
	if err != nil {
		return nil, fmt.Errorf("feedback: failed to list: %w", err)
	}
	return entries, nil
}
