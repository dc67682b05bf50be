package llm

import (
	"context"
	"time"

	"github.com/helixir/paper-retrieval-service/internal/observability"
)

// Operation labels used in LLM metrics.
const (
	OpSummarize = "summarize"
	OpEmbed     = "embed"
)

// InstrumentedSummarizer records request, latency and token metrics around a
// Summarizer.
type InstrumentedSummarizer struct {
	Summarizer
	metrics *observability.Metrics
}

// InstrumentSummarizer wraps s. A nil metrics returns s unchanged.
func InstrumentSummarizer(s Summarizer, metrics *observability.Metrics) Summarizer {
	if metrics == nil {
		return s
	}
	return &InstrumentedSummarizer{Summarizer: s, metrics: metrics}
}

// Summarize delegates and records the outcome.
func (s *InstrumentedSummarizer) Summarize(ctx context.Context, text string) (*Completion, error) {
	start := time.Now()
	c, err := s.Summarizer.Summarize(ctx, text)
	if err != nil {
		s.metrics.RecordLLMRequestFailed(OpSummarize, s.Model(), ErrorType(err))
		return nil, err
	}
	s.metrics.RecordLLMRequest(OpSummarize, s.Model(), time.Since(start).Seconds(), c.InputTokens, c.OutputTokens)
	return c, nil
}

// InstrumentedEmbedder records request and latency metrics around an Embedder.
type InstrumentedEmbedder struct {
	Embedder
	metrics *observability.Metrics
}

// InstrumentEmbedder wraps e. A nil metrics returns e unchanged.
func InstrumentEmbedder(e Embedder, metrics *observability.Metrics) Embedder {
	if metrics == nil {
		return e
	}
	return &InstrumentedEmbedder{Embedder: e, metrics: metrics}
}

// Embed delegates and records the outcome.
func (e *InstrumentedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vectors, err := e.Embedder.Embed(ctx, texts)
	if err != nil {
		e.metrics.RecordLLMRequestFailed(OpEmbed, e.Model(), ErrorType(err))
		return nil, err
	}
	e.metrics.RecordLLMRequest(OpEmbed, e.Model(), time.Since(start).Seconds(), 0, 0)
	return vectors, nil
}
