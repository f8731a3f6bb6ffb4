package kafka

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/assistant/internal/config"
	"github.com/smartcity/assistant/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	event := domain.ReportEvent{
		City:        "London",
		Kind:        domain.ReportKindAirQuality,
		GeneratedAt: now,
		Payload:     json.RawMessage(`{"aqi":2}`),
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("london"), msg.Key)
	assert.Contains(t, string(msg.Value), `"kind":"air_quality"`)
	assert.Contains(t, string(msg.Value), `"payload":{"aqi":2}`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "kind", msg.Headers[0].Key)
	assert.Equal(t, []byte("air_quality"), msg.Headers[0].Value)
	assert.Equal(t, "generated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestSerializeToMessage_InvalidPayload(t *testing.T) {
	_, err := serializeToMessage(domain.ReportEvent{City: "X", Payload: json.RawMessage(`{broken`)})
	assert.ErrorContains(t, err, "serialize report event")
}

func TestNewWriter_UsesConfiguredTopic(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaReportTopic: "city-reports"}
	w := NewWriter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Equal(t, "city-reports", w.writer.Topic)
	assert.NoError(t, w.Close())
}
