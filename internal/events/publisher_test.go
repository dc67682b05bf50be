package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-retrieval-service/internal/domain"
	"github.com/helixir/paper-retrieval-service/internal/observability"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	m := observability.NewMetrics("test_events_publisher")
	p := newKafkaPublisher(w, "", zerolog.Nop(), m)

	payload := domain.PapersRefreshedPayload{
		Query:    "graph neural networks",
		Fetched:  12,
		Inserted: 9,
		Sources:  []domain.SourceCount{{Source: domain.SourceTypeArXiv, Papers: 12}},
	}
	require.NoError(t, p.Publish(context.Background(), domain.EventTypePapersRefreshed, payload.Query, payload))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "graph neural networks", string(msg.Key))
	assert.Equal(t, domain.EventTypePapersRefreshed, header(msg, HeaderEventType))
	assert.Equal(t, DefaultSource, header(msg, HeaderSource))

	var event domain.Event
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, header(msg, HeaderEventID), event.EventID)
	assert.Equal(t, 1, event.EventVersion)
	assert.True(t, msg.Time.Equal(event.OccurredAt))

	var got domain.PapersRefreshedPayload
	require.NoError(t, json.Unmarshal(event.Payload, &got))
	assert.Equal(t, payload, got)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsPublished.WithLabelValues(domain.EventTypePapersRefreshed)))
}

func TestKafkaPublisher_Publish_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	m := observability.NewMetrics("test_events_publisher_error")
	p := newKafkaPublisher(w, "svc", zerolog.Nop(), m)

	err := p.Publish(context.Background(), domain.EventTypePapersRefreshed, "q", domain.PapersRefreshedPayload{})
	assert.ErrorContains(t, err, "publish papers.refreshed event")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsFailed.WithLabelValues(domain.EventTypePapersRefreshed)))
}

func TestKafkaPublisher_Publish_UnencodablePayload(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "svc", zerolog.Nop(), nil)

	err := p.Publish(context.Background(), "x", "k", map[string]any{"bad": make(chan int)})
	assert.ErrorContains(t, err, "build x event")
	assert.Empty(t, w.messages)
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	_, err := NewKafkaPublisher(PublisherConfig{Topic: "t"}, zerolog.Nop(), nil)
	assert.ErrorContains(t, err, "at least one broker")

	_, err = NewKafkaPublisher(PublisherConfig{Brokers: []string{"localhost:9092"}}, zerolog.Nop(), nil)
	assert.ErrorContains(t, err, "topic is required")

	p, err := NewKafkaPublisher(PublisherConfig{Brokers: []string{"localhost:9092"}, Topic: "papers.events"}, zerolog.Nop(), nil)
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newKafkaPublisher(w, "", zerolog.Nop(), nil).Close())
	assert.True(t, w.closed)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), "any", "k", nil))
	assert.NoError(t, p.Close())
}
