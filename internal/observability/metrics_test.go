package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("test_paper_retrieval_new")

	assert.NotNil(t, m.SearchRequests)
	assert.NotNil(t, m.SearchRequestDuration)
	assert.NotNil(t, m.CacheLookups)
	assert.NotNil(t, m.Refreshes)
	assert.NotNil(t, m.PapersInserted)
	assert.NotNil(t, m.CorpusFallbacks)
	assert.NotNil(t, m.SourceSearchesStarted)
	assert.NotNil(t, m.SourceSearchesCompleted)
	assert.NotNil(t, m.SourceSearchesFailed)
	assert.NotNil(t, m.PapersDropped)
	assert.NotNil(t, m.RankingDuration)
	assert.NotNil(t, m.EmbeddingCacheLookups)
	assert.NotNil(t, m.Summaries)
	assert.NotNil(t, m.LLMRequestsTotal)
	assert.NotNil(t, m.LLMTokensUsed)
	assert.NotNil(t, m.EventsPublished)
	assert.NotNil(t, m.EventsFailed)
}

func TestRecordSearchRequest(t *testing.T) {
	m := NewMetrics("test_search_request")

	m.RecordSearchRequest("ok", 1.2)
	m.RecordSearchRequest("not_found", 0.3)
	m.RecordSearchRequest("ok", 0.8)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.SearchRequests.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchRequests.WithLabelValues("not_found")))

	histCount, err := getHistogramSampleCount(m.SearchRequestDuration)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), histCount)
}

func TestRecordCacheLookup(t *testing.T) {
	m := NewMetrics("test_cache_lookup")

	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheLookups.WithLabelValues("stale")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheLookups.WithLabelValues("fresh")))
}

func TestRecordRefresh(t *testing.T) {
	m := NewMetrics("test_refresh")

	m.RecordRefresh("stale", 12)
	m.RecordRefresh("manual", 3)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Refreshes.WithLabelValues("stale")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Refreshes.WithLabelValues("manual")))
	assert.Equal(t, float64(15), testutil.ToFloat64(m.PapersInserted))
}

func TestRecordCorpusFallback(t *testing.T) {
	m := NewMetrics("test_corpus_fallback")

	initial := testutil.ToFloat64(m.CorpusFallbacks)
	m.RecordCorpusFallback()
	assert.Equal(t, initial+1, testutil.ToFloat64(m.CorpusFallbacks))
}

func TestRecordSourceSearch(t *testing.T) {
	m := NewMetrics("test_source_search")

	m.RecordSourceSearchStarted("arxiv")
	m.RecordSourceSearchCompleted("arxiv", 18, 2, 0.9)
	m.RecordSourceSearchStarted("openalex")
	m.RecordSourceSearchFailed("openalex", 10)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceSearchesStarted.WithLabelValues("arxiv")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceSearchesCompleted.WithLabelValues("arxiv")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.PapersDropped.WithLabelValues("arxiv")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceSearchesFailed.WithLabelValues("openalex")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.PapersDropped.WithLabelValues("openalex")))
}

func TestRecordRanking(t *testing.T) {
	m := NewMetrics("test_ranking")

	m.RecordRanking(42, 0.02)

	histCount, err := getHistogramSampleCount(m.CandidatesRanked)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), histCount)
}

func TestRecordEmbeddingCache(t *testing.T) {
	m := NewMetrics("test_embedding_cache")

	m.RecordEmbeddingCache(3, 1)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.EmbeddingCacheLookups.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EmbeddingCacheLookups.WithLabelValues("miss")))
}

func TestRecordSummary(t *testing.T) {
	m := NewMetrics("test_summary")

	m.RecordSummary(true)
	m.RecordSummary(false)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Summaries.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Summaries.WithLabelValues("failed")))
}

func TestRecordLLMRequest(t *testing.T) {
	m := NewMetrics("test_llm_request")

	m.RecordLLMRequest("summarize", "llama3", 2.5, 100, 50)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("summarize", "llama3")))
	assert.Equal(t, float64(100), testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("summarize", "llama3", "input")))
	assert.Equal(t, float64(50), testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("summarize", "llama3", "output")))
}

func TestRecordLLMRequestFailed(t *testing.T) {
	m := NewMetrics("test_llm_request_failed")

	m.RecordLLMRequestFailed("embed", "nomic-embed-text", "rate_limit")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequestsFailed.WithLabelValues("embed", "nomic-embed-text", "rate_limit")))
}

func TestRecordEvents(t *testing.T) {
	m := NewMetrics("test_events")

	m.RecordEventPublished("papers.refreshed")
	m.RecordEventFailed("papers.refreshed")
	m.RecordEventPublished("papers.refreshed")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.EventsPublished.WithLabelValues("papers.refreshed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsFailed.WithLabelValues("papers.refreshed")))
}

// Helper to get histogram sample count
func getHistogramSampleCount(h prometheus.Histogram) (uint64, error) {
	ch := make(chan prometheus.Metric, 1)
	h.Collect(ch)
	close(ch)

	var m prometheus.Metric
	for m = range ch {
		break
	}

	var dto = &dto.Metric{}
	if err := m.Write(dto); err != nil {
		return 0, err
	}

	return dto.Histogram.GetSampleCount(), nil
}
