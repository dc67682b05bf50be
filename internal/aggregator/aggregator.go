// Package aggregator queries every configured paper source for a research
// query and concatenates what they return.
//
// Sources are searched concurrently through a papersources.Registry, but the
// combined list always follows registration order (arxiv, semantic_scholar,
// openalex by default). A source that fails or times out is logged and
// contributes nothing; the aggregation itself never fails.
package aggregator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-retrieval-service/internal/domain"
	"github.com/helixir/paper-retrieval-service/internal/observability"
	"github.com/helixir/paper-retrieval-service/internal/papersources"
)

// SourceSearcher runs one search against every enabled source. It is
// satisfied by *papersources.Registry.
type SourceSearcher interface {
	SearchAll(ctx context.Context, params papersources.SearchParams) []papersources.SourceResult
	EnabledSources() []papersources.PaperSource
}

// Aggregation is the outcome of one aggregation run.
type Aggregation struct {
	// Papers holds every kept record in source order. Records are not
	// deduplicated across sources.
	Papers []domain.Paper

	// Sources reports one entry per searched source, in source order.
	Sources []domain.SourceCount

	// Duration is the wall time of the whole fan-out.
	Duration time.Duration
}

// AnySucceeded reports whether at least one source answered without error.
func (a Aggregation) AnySucceeded() bool {
	for _, s := range a.Sources {
		if s.Error == "" {
			return true
		}
	}
	return false
}

// Failed returns the sources that reported an error.
func (a Aggregation) Failed() []domain.SourceType {
	var failed []domain.SourceType
	for _, s := range a.Sources {
		if s.Error != "" {
			failed = append(failed, s.Source)
		}
	}
	return failed
}

// Aggregator fans a query out to the registered sources.
type Aggregator struct {
	sources SourceSearcher
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// New creates an Aggregator. The metrics parameter may be nil (metrics
// recording will be skipped).
func New(sources SourceSearcher, logger zerolog.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{
		sources: sources,
		logger:  observability.WithComponent(logger, "aggregator"),
		metrics: metrics,
	}
}

// Aggregate searches every enabled source for query, asking each for at most
// perSourceLimit records (0 uses the source default), and returns the
// concatenation of their results in source order.
func (a *Aggregator) Aggregate(ctx context.Context, query string, perSourceLimit int) Aggregation {
	logger := observability.WithQueryContext(observability.LoggerFromContext(ctx, a.logger), query)

	if a.metrics != nil {
		for _, s := range a.sources.EnabledSources() {
			a.metrics.RecordSourceSearchStarted(string(s.SourceType()))
		}
	}

	start := time.Now()
	results := a.sources.SearchAll(ctx, papersources.SearchParams{
		Query:      query,
		MaxResults: perSourceLimit,
	})

	agg := Aggregation{
		Sources: make([]domain.SourceCount, 0, len(results)),
	}

	for _, sr := range results {
		sourceName := string(sr.Source)
		srcLogger := observability.WithSourceContext(logger, sourceName)

		if sr.Error != nil {
			srcLogger.Warn().
				Err(sr.Error.Err).
				Dur("duration", sr.Duration).
				Msg("source search failed")

			if a.metrics != nil {
				a.metrics.RecordSourceSearchFailed(sourceName, sr.Duration.Seconds())
			}

			agg.Sources = append(agg.Sources, domain.SourceCount{
				Source: sr.Source,
				Error:  sr.Error.Err.Error(),
			})
			continue
		}

		papers := sr.Papers()
		dropped := 0
		if sr.Result != nil {
			dropped = sr.Result.Dropped
		}

		srcLogger.Debug().
			Int("papers", len(papers)).
			Int("dropped", dropped).
			Dur("duration", sr.Duration).
			Msg("source search completed")

		if a.metrics != nil {
			a.metrics.RecordSourceSearchCompleted(sourceName, len(papers), dropped, sr.Duration.Seconds())
		}

		agg.Papers = append(agg.Papers, papers...)
		agg.Sources = append(agg.Sources, domain.SourceCount{
			Source: sr.Source,
			Papers: len(papers),
		})
	}

	agg.Duration = time.Since(start)

	logger.Info().
		Int("papers", len(agg.Papers)).
		Int("sources", len(agg.Sources)).
		Int("failed", len(agg.Failed())).
		Dur("duration", agg.Duration).
		Msg("aggregation completed")

	return agg
}
