package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/paper-retrieval-service/internal/observability"
)

// pointNamespace scopes the UUIDv5 ids of cached embeddings.
var pointNamespace = uuid.MustParse("6f1c2f0e-6a7b-5d43-9c1e-8a3f0b7d2e51")

// Embedder is the upstream embedding model.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Provider() string
	Model() string
}

// PointID returns the deterministic point id for text embedded by model.
func PointID(model, text string) uuid.UUID {
	return uuid.NewSHA1(pointNamespace, []byte(model+"\x00"+text))
}

// CachingEmbedder serves embeddings from a VectorStore and only sends cache
// misses upstream. Store failures are logged and bypassed.
type CachingEmbedder struct {
	next    Embedder
	store   VectorStore
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewCachingEmbedder wraps next with store. metrics may be nil.
func NewCachingEmbedder(next Embedder, store VectorStore, logger zerolog.Logger, metrics *observability.Metrics) *CachingEmbedder {
	return &CachingEmbedder{
		next:    next,
		store:   store,
		logger:  logger.With().Str("component", "embedding_cache").Logger(),
		metrics: metrics,
	}
}

// Embed returns one vector per text, index-aligned with texts.
func (e *CachingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := e.next.Model()
	ids := make([]uuid.UUID, len(texts))
	for i, text := range texts {
		ids[i] = PointID(model, text)
	}

	cached, err := e.store.Get(ctx, ids)
	if err != nil {
		e.logger.Warn().Err(err).Int("texts", len(texts)).Msg("embedding cache lookup failed")
		cached = nil
	}

	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	pending := make(map[uuid.UUID]int)
	for i, id := range ids {
		if v, ok := cached[id]; ok {
			out[i] = v
			continue
		}
		// Duplicate texts in one call are embedded once.
		if first, ok := pending[id]; ok {
			missIdx = append(missIdx, first)
			continue
		}
		pending[id] = len(missTexts)
		missTexts = append(missTexts, texts[i])
		missIdx = append(missIdx, len(missTexts)-1)
	}

	hits := len(texts) - len(missIdx)
	if e.metrics != nil {
		e.metrics.RecordEmbeddingCache(hits, len(missIdx))
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := e.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedding cache: expected %d vectors, got %d", len(missTexts), len(fresh))
	}

	j := 0
	for i := range out {
		if out[i] != nil {
			continue
		}
		out[i] = fresh[missIdx[j]]
		j++
	}

	points := make([]Point, len(missTexts))
	for i, text := range missTexts {
		points[i] = Point{ID: PointID(model, text), Vector: fresh[i], Model: model}
	}
	if err := e.store.Upsert(ctx, points); err != nil {
		e.logger.Warn().Err(err).Int("points", len(points)).Msg("embedding cache write failed")
	}

	e.logger.Debug().Int("hits", hits).Int("misses", len(missIdx)).Msg("embedded texts")
	return out, nil
}

// Provider returns the upstream provider name.
func (e *CachingEmbedder) Provider() string {
	return e.next.Provider()
}

// Model returns the upstream model.
func (e *CachingEmbedder) Model() string {
	return e.next.Model()
}
