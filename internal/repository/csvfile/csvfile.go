// Package csvfile stores feedback and user eco tips as append-only CSV logs.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/smartcity/assistant/internal/domain"
)

// TimestampLayout is the timestamp column format of both logs
const TimestampLayout = "2006-01-02 15:04:05"

var (
	feedbackHeader = []string{"timestamp", "name", "city", "rating", "feedback"}
	tipHeader      = []string{"timestamp", "category", "tip"}
)

// appendRow writes the header when the file is new or empty, then the row
func appendRow(path string, header, row []string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// FeedbackLog implements domain.FeedbackStore on a CSV file
type FeedbackLog struct {
	mu   sync.Mutex
	path string
}

// NewFeedbackLog creates a feedback log writing to path
func NewFeedbackLog(path string) *FeedbackLog {
	return &FeedbackLog{path: path}
}

// AppendFeedback appends one row
func (l *FeedbackLog) AppendFeedback(ctx context.Context, entry domain.FeedbackEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	row := []string{
		entry.Timestamp.Format(TimestampLayout),
		entry.Name,
		entry.City,
		strconv.Itoa(entry.Rating),
		entry.Feedback,
	}
	if err := appendRow(l.path, feedbackHeader, row); err != nil {
		return fmt.Errorf("feedback log: failed to append: %w", err)
	}
	return nil
}

// ListFeedback reads every row, oldest first. A missing file is an empty log.
func (l *FeedbackLog) ListFeedback(ctx context.Context) ([]domain.FeedbackEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return []domain.FeedbackEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("feedback log: failed to open: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(feedbackHeader)

	entries := []domain.FeedbackEntry{}
	for line := 1; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("feedback log: failed to read: %w", err)
		}
		if line == 1 && rec[0] == feedbackHeader[0] {
			continue
		}

		ts, err := time.ParseInLocation(TimestampLayout, rec[0], time.Local)
		if err != nil {
			return nil, fmt.Errorf("feedback log: line %d: bad timestamp: %w", line, err)
		}
		rating, err := strconv.Atoi(rec[3])
		if err != nil {
			return nil, fmt.Errorf("feedback log: line %d: bad rating: %w", line, err)
		}
		entries = append(entries, domain.FeedbackEntry{
			Timestamp: ts,
			Name:      rec[1],
			City:      rec[2],
			Rating:    rating,
			Feedback:  rec[4],
		})
	}
	return entries, nil
}

// TipLog implements domain.TipStore on a CSV file
type TipLog struct {
	mu   sync.Mutex
	path string
}

// NewTipLog creates a tip log writing to path
func NewTipLog(path string) *TipLog {
	return &TipLog{path: path}
}

// AppendTip appends one row
func (l *TipLog) AppendTip(ctx context.Context, tip domain.EcoTip) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	row := []string{tip.Timestamp.Format(TimestampLayout), tip.Category, tip.Tip}
	if err := appendRow(l.path, tipHeader, row); err != nil {
		return fmt.Errorf("tip log: failed to append: %w", err)
	}
	return nil
}

var (
	_ domain.FeedbackStore = (*FeedbackLog)(nil)
	_ domain.TipStore      = (*TipLog)(nil)
)
