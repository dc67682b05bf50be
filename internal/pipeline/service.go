// Package pipeline answers research queries end to end: refresh the corpus
// when the query is stale, pick candidates, rank them and summarize the top
// results.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/helixir/paper-retrieval-service/internal/aggregator"
	"github.com/helixir/paper-retrieval-service/internal/domain"
	"github.com/helixir/paper-retrieval-service/internal/events"
	"github.com/helixir/paper-retrieval-service/internal/observability"
	"github.com/helixir/paper-retrieval-service/internal/ranking"
)

// Refresh triggers, used as metric labels.
const (
	TriggerStale  = "stale"
	TriggerManual = "manual"
	TriggerEvent  = "event"
)

// Result is one search hit as returned to clients.
type Result struct {
	Title   string            `json:"title"`
	Authors string            `json:"authors"`
	Summary string            `json:"summary"`
	Source  domain.SourceType `json:"source"`
}

// Aggregator fetches papers for a query from the upstream sources.
type Aggregator interface {
	Aggregate(ctx context.Context, query string, perSourceLimit int) aggregator.Aggregation
}

// StalenessCache decides whether a query must be re-aggregated.
type StalenessCache interface {
	IsStale(ctx context.Context, query string) (bool, error)
	Touch(ctx context.Context, query string) error
}

// PaperStore is the corpus.
type PaperStore interface {
	UpsertAll(ctx context.Context, papers []domain.Paper) (int, error)
	SearchSubstring(ctx context.Context, query string) ([]domain.Paper, error)
	All(ctx context.Context) ([]domain.Paper, error)
}

// Ranker orders candidates best first.
type Ranker interface {
	Rank(ctx context.Context, query string, candidates []domain.Paper, topK int) ([]domain.Paper, error)
}

// Summarizer produces one summary per abstract, index-aligned.
type Summarizer interface {
	SummarizeAll(ctx context.Context, abstracts []string) []string
}

// Dependencies are the collaborators a Service needs. Publisher may be nil.
type Dependencies struct {
	Aggregator Aggregator
	Cache      StalenessCache
	Papers     PaperStore
	Ranker     Ranker
	Summarizer Summarizer
	Publisher  events.Publisher
}

// Config holds the pipeline tunables.
type Config struct {
	// TopK is both the number of results returned and the substring match
	// count below which the whole corpus becomes the candidate pool.
	TopK int
	// PerSourceLimit caps records requested from each source (0 = source default).
	PerSourceLimit int
}

// Service runs the retrieval pipeline.
type Service struct {
	deps    Dependencies
	cfg     Config
	refresh singleflight.Group
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = observability.WithComponent(logger, "pipeline")
	}
}

// WithMetrics enables refresh and fallback metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a Service.
func New(deps Dependencies, cfg Config, opts ...Option) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = ranking.DefaultTopK
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	s := &Service{
		deps:   deps,
		cfg:    cfg,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TopK returns the configured result count.
func (s *Service) TopK() int {
	return s.cfg.TopK
}

// Search returns at most TopK results for query, best first. It returns
// domain.ErrNoResults when the corpus holds nothing to rank.
func (s *Service) Search(ctx context.Context, query string) ([]Result, error) {
	if query == "" {
		return nil, domain.NewValidationError("query", "is required")
	}
	logger := observability.WithQueryContext(observability.LoggerFromContext(ctx, s.logger), query)

	stale, err := s.deps.Cache.IsStale(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("checking query freshness: %w", err)
	}
	if stale {
		if _, err := s.refreshOnce(ctx, query, TriggerStale); err != nil {
			return nil, err
		}
	}

	candidates, err := s.candidates(ctx, query, logger)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, domain.ErrNoResults
	}

	ranked, err := s.deps.Ranker.Rank(ctx, query, candidates, s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("ranking %d candidates: %w", len(candidates), err)
	}

	abstracts := make([]string, len(ranked))
	for i, p := range ranked {
		abstracts[i] = p.Abstract
	}
	summaries := s.deps.Summarizer.SummarizeAll(ctx, abstracts)

	results := make([]Result, len(ranked))
	for i, p := range ranked {
		results[i] = Result{
			Title:   p.Title,
			Authors: p.Authors,
			Summary: summaries[i],
			Source:  p.Source,
		}
	}

	logger.Info().
		Bool("refreshed", stale).
		Int("candidates", len(candidates)).
		Int("results", len(results)).
		Msg("search completed")
	return results, nil
}

// candidates returns the substring matches, or the whole corpus when there
// are fewer than TopK of them.
func (s *Service) candidates(ctx context.Context, query string, logger zerolog.Logger) ([]domain.Paper, error) {
	matches, err := s.deps.Papers.SearchSubstring(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("searching corpus: %w", err)
	}
	if len(matches) >= s.cfg.TopK {
		return matches, nil
	}

	all, err := s.deps.Papers.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}

	logger.Debug().
		Int("matches", len(matches)).
		Int("corpus", len(all)).
		Msg("too few substring matches, ranking whole corpus")
	if s.metrics != nil {
		s.metrics.RecordCorpusFallback()
	}
	return all, nil
}

// Refresh re-aggregates query regardless of staleness and returns the number
// of records the sources returned.
func (s *Service) Refresh(ctx context.Context, query string) (int, error) {
	if query == "" {
		return 0, domain.NewValidationError("query", "is required")
	}
	return s.refreshOnce(ctx, query, TriggerManual)
}

// EventRefresher returns a Refresher that labels its refreshes as event
// triggered.
func (s *Service) EventRefresher() events.Refresher {
	return refresherFunc(func(ctx context.Context, query string) (int, error) {
		return s.refreshOnce(ctx, query, TriggerEvent)
	})
}

type refresherFunc func(ctx context.Context, query string) (int, error)

func (f refresherFunc) Refresh(ctx context.Context, query string) (int, error) {
	return f(ctx, query)
}

// refreshOnce collapses concurrent refreshes of the same query into one.
// The shared run is detached from the caller's cancellation since other
// callers may be waiting on it; each source call keeps its own timeout.
func (s *Service) refreshOnce(ctx context.Context, query, trigger string) (int, error) {
	v, err, _ := s.refresh.Do(query, func() (any, error) {
		return s.doRefresh(context.WithoutCancel(ctx), query, trigger)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (s *Service) doRefresh(ctx context.Context, query, trigger string) (int, error) {
	logger := observability.WithQueryContext(observability.LoggerFromContext(ctx, s.logger), query).With().
		Str("trigger", trigger).
		Logger()
	start := time.Now()

	agg := s.deps.Aggregator.Aggregate(ctx, query, s.cfg.PerSourceLimit)

	inserted, err := s.deps.Papers.UpsertAll(ctx, agg.Papers)
	if err != nil {
		return 0, fmt.Errorf("storing %d papers: %w", len(agg.Papers), err)
	}

	// A refresh in which every source failed leaves the query stale so the
	// next search tries again.
	if agg.AnySucceeded() {
		if err := s.deps.Cache.Touch(ctx, query); err != nil {
			return 0, fmt.Errorf("marking query fresh: %w", err)
		}
	} else {
		logger.Warn().
			Interface("failed_sources", agg.Failed()).
			Msg("no source answered, query stays stale")
	}

	if s.metrics != nil {
		s.metrics.RecordRefresh(trigger, inserted)
	}

	payload := domain.PapersRefreshedPayload{
		Query:    query,
		Fetched:  len(agg.Papers),
		Inserted: inserted,
		Sources:  agg.Sources,
		Forced:   trigger != TriggerStale,
	}
	if err := s.deps.Publisher.Publish(ctx, domain.EventTypePapersRefreshed, query, payload); err != nil {
		logger.Warn().Err(err).Msg("failed to publish refresh event")
	}

	logger.Info().
		Int("fetched", len(agg.Papers)).
		Int("inserted", inserted).
		Dur("duration", time.Since(start)).
		Msg("refreshed corpus")
	return len(agg.Papers), nil
}
