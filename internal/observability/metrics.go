package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the paper retrieval service.
// Metrics are organized by subsystem: requests, corpus refreshes, sources,
// ranking, embeddings, summarization, LLM calls and events. All counters and
// histograms are registered via promauto with the default Prometheus registry.
type Metrics struct {
	// SearchRequests counts /search requests by outcome (ok, not_found, invalid, error).
	SearchRequests *prometheus.CounterVec

	// SearchRequestDuration observes end-to-end /search latency in seconds.
	SearchRequestDuration prometheus.Histogram

	// CacheLookups counts staleness checks by result (fresh, stale).
	CacheLookups *prometheus.CounterVec

	// Refreshes counts corpus refreshes by trigger (stale, manual, event).
	Refreshes *prometheus.CounterVec

	// PapersInserted counts papers newly written to the corpus.
	PapersInserted prometheus.Counter

	// CorpusFallbacks counts searches whose substring pool was widened to the whole corpus.
	CorpusFallbacks prometheus.Counter

	// SourceSearchesStarted counts upstream searches initiated, labeled by source.
	SourceSearchesStarted *prometheus.CounterVec

	// SourceSearchesCompleted counts successful upstream searches, labeled by source.
	SourceSearchesCompleted *prometheus.CounterVec

	// SourceSearchesFailed counts failed upstream searches, labeled by source.
	SourceSearchesFailed *prometheus.CounterVec

	// SourceSearchDuration observes upstream search duration in seconds, labeled by source.
	SourceSearchDuration *prometheus.HistogramVec

	// PapersPerSearch observes papers kept per upstream search, labeled by source.
	PapersPerSearch *prometheus.HistogramVec

	// PapersDropped counts upstream records dropped for missing title or abstract.
	PapersDropped *prometheus.CounterVec

	// RankingDuration observes the time spent scoring a candidate pool.
	RankingDuration prometheus.Histogram

	// CandidatesRanked observes candidate pool sizes.
	CandidatesRanked prometheus.Histogram

	// EmbeddingCacheLookups counts vector cache lookups by result (hit, miss).
	EmbeddingCacheLookups *prometheus.CounterVec

	// Summaries counts summaries by outcome (ok, failed).
	Summaries *prometheus.CounterVec

	// LLMRequestsTotal counts LLM API requests, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by operation and model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed counts tokens consumed by LLM operations, labeled by operation, model, and token type.
	LLMTokensUsed *prometheus.CounterVec

	// EventsPublished counts events written to the broker, labeled by event type.
	EventsPublished *prometheus.CounterVec

	// EventsFailed counts events that could not be published, labeled by event type.
	EventsFailed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Requests
		SearchRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of search requests by outcome",
		}, []string{"outcome"}),
		SearchRequestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_request_duration_seconds",
			Help:      "Duration of search requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		// Corpus
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_lookups_total",
			Help:      "Total number of query staleness checks by result",
		}, []string{"result"}),
		Refreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corpus_refreshes_total",
			Help:      "Total number of corpus refreshes by trigger",
		}, []string{"trigger"}),
		PapersInserted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_inserted_total",
			Help:      "Total number of papers newly stored in the corpus",
		}),
		CorpusFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corpus_fallbacks_total",
			Help:      "Total number of searches that ranked the whole corpus",
		}),

		// Sources
		SourceSearchesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_searches_started_total",
			Help:      "Total number of upstream searches started by source",
		}, []string{"source"}),
		SourceSearchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_searches_completed_total",
			Help:      "Total number of upstream searches completed by source",
		}, []string{"source"}),
		SourceSearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_searches_failed_total",
			Help:      "Total number of upstream searches that failed by source",
		}, []string{"source"}),
		SourceSearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_search_duration_seconds",
			Help:      "Duration of upstream searches in seconds by source",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"source"}),
		PapersPerSearch: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "papers_per_search",
			Help:      "Number of papers kept per upstream search by source",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 200},
		}, []string{"source"}),
		PapersDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_dropped_total",
			Help:      "Total number of upstream records dropped for a missing title or abstract",
		}, []string{"source"}),

		// Ranking
		RankingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ranking_duration_seconds",
			Help:      "Duration of hybrid ranking in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		CandidatesRanked: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ranking_candidates",
			Help:      "Number of candidates scored per ranking",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}),
		EmbeddingCacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_lookups_total",
			Help:      "Total number of embedding cache lookups by result",
		}, []string{"result"}),

		// Summarization
		Summaries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Total number of abstract summaries by outcome",
		}, []string{"outcome"}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by operation",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM requests by operation",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"operation", "model"}),
		LLMTokensUsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used by LLM operations",
		}, []string{"operation", "model", "token_type"}),

		// Events
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of events published by type",
		}, []string{"event_type"}),
		EventsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of events that failed to publish by type",
		}, []string{"event_type"}),
	}
}

// RecordSearchRequest records a finished /search request.
func (m *Metrics) RecordSearchRequest(outcome string, durationSeconds float64) {
	m.SearchRequests.WithLabelValues(outcome).Inc()
	m.SearchRequestDuration.Observe(durationSeconds)
}

// RecordCacheLookup records a staleness check.
func (m *Metrics) RecordCacheLookup(stale bool) {
	result := "fresh"
	if stale {
		result = "stale"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordRefresh records a corpus refresh and the number of newly stored papers.
func (m *Metrics) RecordRefresh(trigger string, inserted int) {
	m.Refreshes.WithLabelValues(trigger).Inc()
	m.PapersInserted.Add(float64(inserted))
}

// RecordCorpusFallback records that a search fell back to the whole corpus.
func (m *Metrics) RecordCorpusFallback() {
	m.CorpusFallbacks.Inc()
}

// RecordSourceSearchStarted records that an upstream search has started.
func (m *Metrics) RecordSourceSearchStarted(source string) {
	m.SourceSearchesStarted.WithLabelValues(source).Inc()
}

// RecordSourceSearchCompleted records that an upstream search has completed.
func (m *Metrics) RecordSourceSearchCompleted(source string, paperCount, dropped int, durationSeconds float64) {
	m.SourceSearchesCompleted.WithLabelValues(source).Inc()
	m.SourceSearchDuration.WithLabelValues(source).Observe(durationSeconds)
	m.PapersPerSearch.WithLabelValues(source).Observe(float64(paperCount))
	if dropped > 0 {
		m.PapersDropped.WithLabelValues(source).Add(float64(dropped))
	}
}

// RecordSourceSearchFailed records that an upstream search has failed.
func (m *Metrics) RecordSourceSearchFailed(source string, durationSeconds float64) {
	m.SourceSearchesFailed.WithLabelValues(source).Inc()
	m.SourceSearchDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordRanking records one ranking pass.
func (m *Metrics) RecordRanking(candidates int, durationSeconds float64) {
	m.CandidatesRanked.Observe(float64(candidates))
	m.RankingDuration.Observe(durationSeconds)
}

// RecordEmbeddingCache records vector cache hits and misses for one lookup batch.
func (m *Metrics) RecordEmbeddingCache(hits, misses int) {
	m.EmbeddingCacheLookups.WithLabelValues("hit").Add(float64(hits))
	m.EmbeddingCacheLookups.WithLabelValues("miss").Add(float64(misses))
}

// RecordSummary records the outcome of one summarization.
func (m *Metrics) RecordSummary(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.Summaries.WithLabelValues(outcome).Inc()
}

// RecordLLMRequest records an LLM request.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64, inputTokens, outputTokens int) {
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
	m.LLMTokensUsed.WithLabelValues(operation, model, "input").Add(float64(inputTokens))
	m.LLMTokensUsed.WithLabelValues(operation, model, "output").Add(float64(outputTokens))
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}

// RecordEventPublished records a published event.
func (m *Metrics) RecordEventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventFailed records an event that could not be published.
func (m *Metrics) RecordEventFailed(eventType string) {
	m.EventsFailed.WithLabelValues(eventType).Inc()
}
