// Package ranking orders candidate papers against a query by fusing a BM25
// lexical score with an embedding nearest-neighbor score.
package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-retrieval-service/internal/domain"
	"github.com/helixir/paper-retrieval-service/internal/observability"
)

const (
	// DefaultTopK is the number of results a search returns.
	DefaultTopK = 5

	// LexicalWeight and SemanticWeight are the fixed fusion weights.
	LexicalWeight  = 0.5
	SemanticWeight = 0.5

	// normEpsilon keeps min-max normalization finite when every score is equal.
	normEpsilon = 1e-6
)

// Embedder maps texts to vectors of one fixed dimension, one per input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Scored is a candidate with the scores that placed it.
type Scored struct {
	Paper    domain.Paper
	Lexical  float64
	Semantic float64
	Fused    float64
}

// Engine ranks candidates. It holds no per-query state and is safe for
// concurrent use when its Embedder is.
type Engine struct {
	embedder Embedder
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger.With().Str("component", "ranking").Logger()
	}
}

// WithMetrics records ranking latency and pool sizes.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates an Engine that embeds through embedder.
func NewEngine(embedder Embedder, opts ...Option) *Engine {
	e := &Engine{
		embedder: embedder,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rank returns at most topK candidates, best first.
func (e *Engine) Rank(ctx context.Context, query string, candidates []domain.Paper, topK int) ([]domain.Paper, error) {
	scored, err := e.Score(ctx, query, candidates, topK)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Paper, len(scored))
	for i, s := range scored {
		out[i] = s.Paper
	}
	return out, nil
}

// Score computes lexical, semantic and fused scores for every candidate,
// sorts by fused score descending (ties keep input order) and returns the
// first topK.
func (e *Engine) Score(ctx context.Context, query string, candidates []domain.Paper, topK int) ([]Scored, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates to rank", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", domain.ErrInvalidInput, topK)
	}

	start := time.Now()

	abstracts := make([]string, len(candidates))
	docs := make([][]string, len(candidates))
	for i, p := range candidates {
		abstracts[i] = p.Abstract
		docs[i] = Tokenize(p.Abstract)
	}

	lexical := normalize(NewBM25(docs).Scores(Tokenize(query)))

	semantic, err := e.semanticScores(ctx, query, abstracts, topK)
	if err != nil {
		return nil, err
	}

	scored := make([]Scored, len(candidates))
	for i, p := range candidates {
		scored[i] = Scored{
			Paper:    p,
			Lexical:  lexical[i],
			Semantic: semantic[i],
			Fused:    LexicalWeight*lexical[i] + SemanticWeight*semantic[i],
		}
	}
	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Fused > scored[b].Fused
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}

	elapsed := time.Since(start)
	if e.metrics != nil {
		e.metrics.RecordRanking(len(candidates), elapsed.Seconds())
	}
	e.logger.Debug().
		Int("candidates", len(candidates)).
		Int("returned", len(scored)).
		Dur("duration", elapsed).
		Msg("ranked candidates")

	return scored, nil
}

// semanticScores embeds the abstracts and the query in one call, finds the
// min(topK, N) nearest abstracts and converts their distances to
// 1 - d/max_d. Everything outside that set scores 0.
func (e *Engine) semanticScores(ctx context.Context, query string, abstracts []string, topK int) ([]float64, error) {
	texts := make([]string, 0, len(abstracts)+1)
	texts = append(texts, abstracts...)
	texts = append(texts, query)

	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding candidates: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding candidates: expected %d vectors, got %d", len(texts), len(vectors))
	}

	queryVec := vectors[len(abstracts)]
	index := NewFlatL2(len(queryVec))
	if err := index.Add(vectors[:len(abstracts)]...); err != nil {
		return nil, fmt.Errorf("building vector index: %w", err)
	}

	neighbors, err := index.Search(queryVec, topK)
	if err != nil {
		return nil, fmt.Errorf("searching vector index: %w", err)
	}

	var maxDist float64
	for _, n := range neighbors {
		if n.Distance > maxDist {
			maxDist = n.Distance
		}
	}

	scores := make([]float64, len(abstracts))
	for _, n := range neighbors {
		if maxDist == 0 {
			scores[n.Index] = 1
			continue
		}
		scores[n.Index] = 1 - n.Distance/maxDist
	}
	return scores, nil
}

// normalize min-max scales scores to [0, 1).
func normalize(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	for i, s := range scores {
		out[i] = (s - lo) / (hi - lo + normEpsilon)
	}
	return out
}
