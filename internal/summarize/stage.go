// Package summarize turns ranked abstracts into short summaries. A failed
// item is replaced by FailedSummary; the batch always completes.
package summarize

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/paper-retrieval-service/internal/llm"
	"github.com/helixir/paper-retrieval-service/internal/observability"
)

// FailedSummary stands in for any summary that could not be produced.
const FailedSummary = "Summary failed"

// DefaultConcurrency bounds in-flight summarization calls.
const DefaultConcurrency = 5

// Stage summarizes batches of abstracts.
type Stage struct {
	summarizer  llm.Summarizer
	concurrency int
	itemTimeout time.Duration
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// Option configures a Stage.
type Option func(*Stage)

// WithConcurrency caps parallel calls. Values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(s *Stage) {
		if n < 1 {
			n = 1
		}
		s.concurrency = n
	}
}

// WithItemTimeout bounds each summarization call.
func WithItemTimeout(d time.Duration) Option {
	return func(s *Stage) {
		s.itemTimeout = d
	}
}

// WithLogger sets the stage logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Stage) {
		s.logger = logger.With().Str("component", "summarize").Logger()
	}
}

// WithMetrics records per-item outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Stage) {
		s.metrics = m
	}
}

// NewStage creates a Stage backed by summarizer.
func NewStage(summarizer llm.Summarizer, opts ...Option) *Stage {
	s := &Stage{
		summarizer:  summarizer,
		concurrency: DefaultConcurrency,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SummarizeAll returns one summary per abstract, index-aligned with the
// input.
func (s *Stage) SummarizeAll(ctx context.Context, abstracts []string) []string {
	out := make([]string, len(abstracts))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, abstract := range abstracts {
		g.Go(func() error {
			out[i] = s.summarizeOne(ctx, i, abstract)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (s *Stage) summarizeOne(ctx context.Context, i int, abstract string) string {
	if s.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.itemTimeout)
		defer cancel()
	}

	summary := FailedSummary
	c, err := s.summarizer.Summarize(ctx, abstract)
	switch {
	case err != nil:
		s.logger.Warn().Err(err).Int("index", i).Msg("summarization failed")
	case c == nil || c.Text == "":
		s.logger.Warn().Int("index", i).Msg("summarizer returned empty text")
	default:
		summary = c.Text
	}

	if s.metrics != nil {
		s.metrics.RecordSummary(summary != FailedSummary)
	}
	return summary
}
