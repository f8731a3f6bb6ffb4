package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Rating bounds for the feedback form.
const (
	MinRating     = 1
	MaxRating     = 5
	DefaultRating = 3
)

// FeedbackEntry is one submitted feedback form row
type FeedbackEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	Rating    int       `json:"rating"`
	Feedback  string    `json:"feedback"`
}

// Validate checks required fields and the rating range
func (f FeedbackEntry) Validate() error {
	if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.Feedback) == "" {
		return fmt.Errorf("feedback: name and feedback are required: %w", ErrInvalidInput)
	}
	if f.Rating < MinRating || f.Rating > MaxRating {
		return fmt.Errorf("feedback: rating must be between %d and %d: %w", MinRating, MaxRating, ErrInvalidInput)
	}
	return nil
}

// EcoTip is a user-submitted sustainability tip
type EcoTip struct {
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category"`
	Tip       string    `json:"tip"`
}

// FeedbackStore is the append-only sink for feedback rows
type FeedbackStore interface {
	AppendFeedback(ctx context.Context, entry FeedbackEntry) error
	ListFeedback(ctx context.Context) ([]FeedbackEntry, error)
}

// TipStore is the append-only sink for user eco tips
type TipStore interface {
	AppendTip(ctx context.Context, tip EcoTip) error
}
