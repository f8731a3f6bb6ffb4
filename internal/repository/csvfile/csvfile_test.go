package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/assistant/internal/domain"
)

func TestFeedbackLog_AppendAndList(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "feedback_data.csv")
	log := NewFeedbackLog(path)

	ts := time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local)
	require.NoError(t, log.AppendFeedback(ctx, domain.FeedbackEntry{
		Timestamp: ts, Name: "Aida", City: "Almaty", Rating: 4, Feedback: "Great, but slow",
	}))
	require.NoError(t, log.AppendFeedback(ctx, domain.FeedbackEntry{
		Timestamp: ts.Add(time.Minute), Name: "Ben", City: "", Rating: 2, Feedback: "line one\nline two",
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"timestamp,name,city,rating,feedback\n"+
			"2024-05-01 09:30:00,Aida,Almaty,4,\"Great, but slow\"\n"+
			"2024-05-01 09:31:00,Ben,,2,\"line one\nline two\"\n",
		string(raw))

	entries, err := log.ListFeedback(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Aida", entries[0].Name)
	assert.True(t, ts.Equal(entries[0].Timestamp))
	assert.Equal(t, 2, entries[1].Rating)
	assert.Equal(t, "line one\nline two", entries[1].Feedback)
}

func TestFeedbackLog_ListMissingFile(t *testing.T) {
	log := NewFeedbackLog(filepath.Join(t.TempDir(), "absent.csv"))

	entries, err := log.ListFeedback(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFeedbackLog_ListCorruptRating(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,name,city,rating,feedback\n2024-05-01 09:30:00,A,B,five,x\n"), 0o644))

	_, err := NewFeedbackLog(path).ListFeedback(context.Background())
	assert.ErrorContains(t, err, "bad rating")
}

func TestTipLog_HeaderWrittenOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "user_eco_tips.csv")
	log := NewTipLog(path)
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, log.AppendTip(ctx, domain.EcoTip{Timestamp: ts, Category: "Energy", Tip: "Unplug chargers"}))
	require.NoError(t, log.AppendTip(ctx, domain.EcoTip{Timestamp: ts, Category: "Water", Tip: "Shorter showers"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"timestamp,category,tip\n"+
			"2024-05-01 10:00:00,Energy,Unplug chargers\n"+
			"2024-05-01 10:00:00,Water,Shorter showers\n",
		string(raw))
}
