// Package events publishes pipeline events to Kafka and consumes refresh
// requests from it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/paper-retrieval-service/internal/domain"
	"github.com/helixir/paper-retrieval-service/internal/observability"
)

// Header keys set on every published message.
const (
	HeaderEventType = "event_type"
	HeaderEventID   = "event_id"
	HeaderSource    = "source"
)

// DefaultSource identifies this service in message headers.
const DefaultSource = "paper-retrieval-service"

// Publisher publishes domain events.
type Publisher interface {
	// Publish wraps payload in an event envelope keyed by key and sends it.
	Publish(ctx context.Context, eventType, key string, payload any) error
	// Close flushes and releases the underlying transport.
	Close() error
}

// messageWriter is the part of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PublisherConfig configures a KafkaPublisher.
type PublisherConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic receives every published event.
	Topic string
	// BatchSize is the writer batch size.
	BatchSize int
	// BatchTimeout is how long the writer waits to fill a batch.
	BatchTimeout time.Duration
	// Source is written to the source header (default DefaultSource).
	Source string
}

// KafkaPublisher writes events to a single topic, partitioned by event key.
type KafkaPublisher struct {
	writer  messageWriter
	source  string
	logger  zerolog.Logger
	metrics *observability.Metrics
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher backed by a kafka.Writer.
func NewKafkaPublisher(cfg PublisherConfig, logger zerolog.Logger, metrics *observability.Metrics) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka publisher: topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
	}

	return newKafkaPublisher(writer, cfg.Source, logger, metrics), nil
}

func newKafkaPublisher(w messageWriter, source string, logger zerolog.Logger, metrics *observability.Metrics) *KafkaPublisher {
	if source == "" {
		source = DefaultSource
	}
	return &KafkaPublisher{
		writer:  w,
		source:  source,
		logger:  logger.With().Str("component", "event_publisher").Logger(),
		metrics: metrics,
	}
}

// Publish builds the envelope and writes it synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	event, err := domain.NewEvent(eventType, key, payload)
	if err != nil {
		p.recordFailed(eventType)
		return fmt.Errorf("build %s event: %w", eventType, err)
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.recordFailed(eventType)
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Key),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(event.EventType)},
			{Key: HeaderEventID, Value: []byte(event.EventID)},
			{Key: HeaderSource, Value: []byte(p.source)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.recordFailed(eventType)
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	if p.metrics != nil {
		p.metrics.RecordEventPublished(eventType)
	}
	p.logger.Debug().
		Str("event_type", eventType).
		Str("event_id", event.EventID).
		Str("key", key).
		Msg("published event")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) recordFailed(eventType string) {
	if p.metrics != nil {
		p.metrics.RecordEventFailed(eventType)
	}
}

// NopPublisher drops every event. Used when Kafka is disabled.
type NopPublisher struct{}

var _ Publisher = NopPublisher{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }
