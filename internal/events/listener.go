package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/paper-retrieval-service/internal/domain"
	"github.com/helixir/paper-retrieval-service/internal/observability"
)

// Pause bounds between failed fetches; the pause doubles per consecutive
// failure and resets after a successful fetch.
const (
	minFetchBackoff = 100 * time.Millisecond
	maxFetchBackoff = 5 * time.Second
)

// Refresher re-aggregates papers for a query.
type Refresher interface {
	Refresh(ctx context.Context, query string) (int, error)
}

// messageReader is the part of *kafka.Reader used by RefreshListener.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ListenerConfig holds configuration for the refresh listener.
type ListenerConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic carries papers.refresh_requested events.
	Topic string
	// GroupID is the consumer group ID.
	GroupID string
}

// RefreshListener consumes refresh requests and runs them one at a time.
// Every fetched message is committed once handled, including the ones that
// fail, so a bad request cannot stall its partition.
type RefreshListener struct {
	reader     messageReader
	refresher  Refresher
	logger     zerolog.Logger
	backoffMin time.Duration
	backoffMax time.Duration
}

// NewRefreshListener creates a listener backed by a kafka.Reader.
func NewRefreshListener(cfg ListenerConfig, refresher Refresher, logger zerolog.Logger) *RefreshListener {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})
	return newRefreshListener(reader, refresher, logger)
}

func newRefreshListener(reader messageReader, refresher Refresher, logger zerolog.Logger) *RefreshListener {
	return &RefreshListener{
		reader:     reader,
		refresher:  refresher,
		logger:     observability.WithComponent(logger, "refresh_listener"),
		backoffMin: minFetchBackoff,
		backoffMax: maxFetchBackoff,
	}
}

// Run starts the listener loop. Blocks until ctx is cancelled or the reader
// is closed. Fetch errors are retried with a growing pause.
func (l *RefreshListener) Run(ctx context.Context) error {
	l.logger.Info().Msg("starting refresh listener")

	backoff := l.backoffMin
	for {
		msg, err := l.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("refresh listener stopped via context cancellation")
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				l.logger.Info().Msg("kafka reader closed, stopping refresh listener")
				return nil
			}
			l.logger.Error().Err(err).Dur("retry_in", backoff).Msg("failed to read message from Kafka")

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			backoff = min(backoff*2, l.backoffMax)
			continue
		}
		backoff = l.backoffMin

		l.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received refresh request")

		if err := l.handle(ctx, msg); err != nil {
			l.logger.Error().Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("failed to handle refresh request")
		}

		if err := l.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit message")
		}
	}
}

// errSkipped marks messages that are not refresh requests.
var errSkipped = errors.New("skipped")

func (l *RefreshListener) handle(ctx context.Context, msg kafka.Message) error {
	query, err := decodeRefreshRequest(msg.Value)
	if errors.Is(err, errSkipped) {
		l.logger.Debug().Err(err).Msg("ignoring message")
		return nil
	}
	if err != nil {
		return err
	}

	start := time.Now()
	n, err := l.refresher.Refresh(ctx, query)
	if err != nil {
		return fmt.Errorf("refresh %q: %w", query, err)
	}

	l.logger.Info().
		Str("query", query).
		Int("papers", n).
		Dur("duration", time.Since(start)).
		Msg("refreshed papers from request")
	return nil
}

// decodeRefreshRequest extracts the query from a papers.refresh_requested
// envelope.
func decodeRefreshRequest(value []byte) (string, error) {
	var event domain.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return "", fmt.Errorf("unmarshal event: %w", err)
	}
	if event.EventType != domain.EventTypeRefreshRequested {
		return "", fmt.Errorf("%w: event type %q", errSkipped, event.EventType)
	}

	var payload domain.RefreshRequestedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return "", fmt.Errorf("unmarshal refresh payload: %w", err)
	}
	if strings.TrimSpace(payload.Query) == "" {
		return "", fmt.Errorf("%w: empty query", errSkipped)
	}
	return payload.Query, nil
}

// Close closes the Kafka reader.
func (l *RefreshListener) Close() error {
	l.logger.Info().Msg("closing refresh listener")
	return l.reader.Close()
}
