package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-retrieval-service/internal/config"
	"github.com/helixir/paper-retrieval-service/internal/database"
	"github.com/helixir/paper-retrieval-service/internal/domain"
	"github.com/helixir/paper-retrieval-service/internal/papersources"
)

// newUpstream serves the OpenAlex works endpoint and the Ollama chat and
// embed endpoints.
func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/works", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "graph", r.URL.Query().Get("search"))
		_, _ = w.Write([]byte(`{"meta":{"count":3},"results":[
			{"id":"https://openalex.org/W1","title":"Graph neural networks",
			 "authorships":[{"author":{"display_name":"Ada Lovelace"}}],
			 "abstract_inverted_index":{"We":[0],"study":[1],"graph":[2],"models":[3]}},
			{"id":"https://openalex.org/W2","title":"Protein folding",
			 "authorships":[],
			 "abstract_inverted_index":{"Structure":[0],"prediction":[1]}},
			{"id":"https://openalex.org/W3","title":"No abstract","authorships":[],
			 "abstract_inverted_index":null}
		]}`))
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		embeddings := make([][]float32, len(req.Input))
		for i, text := range req.Input {
			var hasGraph float32
			if strings.Contains(text, "graph") {
				hasGraph = 1
			}
			embeddings[i] = []float32{hasGraph, 1}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"model": "all-minilm", "embeddings": embeddings})
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"A short summary."},"done":true}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(upstream string) *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{
			Driver:     config.DriverSQLite,
			SQLitePath: database.MemoryPath,
		},
		Retrieval: config.RetrievalConfig{
			TopK:               5,
			PerSourceLimit:     20,
			SourceTimeout:      5 * time.Second,
			StalenessThreshold: 7 * 24 * time.Hour,
		},
		PaperSources: config.PaperSourcesConfig{
			OpenAlex: config.PaperSourceConfig{
				Enabled:   true,
				BaseURL:   upstream,
				Timeout:   5 * time.Second,
				RateLimit: 100,
			},
		},
		LLM: config.LLMConfig{
			Timeout:    5 * time.Second,
			RetryDelay: time.Millisecond,
			Ollama:     config.OllamaConfig{BaseURL: upstream},
		},
		Embedding:  config.EmbeddingConfig{Provider: config.ProviderOllama, Model: "all-minilm"},
		Summarizer: config.SummarizerConfig{Provider: config.ProviderOllama, Model: "llama3.2", Concurrency: 2},
		QueryCache: config.QueryCacheConfig{Backend: config.CacheBackendSQL},
	}
}

func TestBuild_SearchEndToEnd(t *testing.T) {
	ctx := context.Background()
	upstream := newUpstream(t)

	a, err := Build(ctx, testConfig(upstream.URL), zerolog.Nop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.Contains(t, a.Checks, "database")
	require.NoError(t, a.Checks["database"].Ping(ctx))

	results, err := a.Pipeline.Search(ctx, "graph")
	require.NoError(t, err)

	// The work without an abstract is dropped; two papers remain, both
	// ranked because fewer than five match the query.
	require.Len(t, results, 2)
	assert.Equal(t, "Graph neural networks", results[0].Title)
	assert.Equal(t, "Ada Lovelace", results[0].Authors)
	assert.Equal(t, domain.SourceTypeOpenAlex, results[0].Source)
	for _, r := range results {
		assert.Equal(t, "A short summary.", r.Summary)
	}

	n, err := a.Pipeline.Refresh(ctx, "graph")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestBuild_UnsupportedStorage(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Storage.Driver = "mysql"

	_, err := Build(context.Background(), cfg, zerolog.Nop(), nil)
	assert.ErrorContains(t, err, `unsupported storage driver: "mysql"`)
}

func TestBuild_EmbeddingProviderWithoutEmbeddings(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Embedding.Provider = config.ProviderAnthropic

	_, err := Build(context.Background(), cfg, zerolog.Nop(), nil)
	assert.ErrorContains(t, err, "create embedder")
}

func TestRegisterPaperSources_Order(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.PaperSources.ArXiv.Enabled = true
	cfg.PaperSources.SemanticScholar.Enabled = true

	registry := papersources.NewRegistry(time.Second)
	RegisterPaperSources(registry, cfg, zerolog.Nop())

	var got []domain.SourceType
	for _, s := range registry.EnabledSources() {
		got = append(got, s.SourceType())
	}
	assert.Equal(t, []domain.SourceType{
		domain.SourceTypeArXiv,
		domain.SourceTypeSemanticScholar,
		domain.SourceTypeOpenAlex,
	}, got)
}
