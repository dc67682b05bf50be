package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_Summarize(t *testing.T) {
	var received ollamaChatRequest

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		json.NewEncoder(w).Encode(ollamaChatResponse{
			Model:           "llama3.2",
			Message:         chatMessage{Role: "assistant", Content: "Graph networks generalize convolutions.\n"},
			Done:            true,
			PromptEvalCount: 120,
			EvalCount:       14,
		})
	})

	provider := NewOllamaProvider(OllamaConfig{BaseURL: server.URL}, ProviderOptions{Temperature: 0.1})
	c, err := provider.Summarize(context.Background(), "We present graph networks...")
	require.NoError(t, err)

	assert.False(t, received.Stream)
	assert.Equal(t, defaultOllamaModel, received.Model)
	assert.Equal(t, defaultOllamaMaxTokens, received.Options.NumPredict)
	assert.InDelta(t, 0.1, received.Options.Temperature, 1e-9)
	assert.Equal(t, "summarize: We present graph networks...", received.Messages[1].Content)

	assert.Equal(t, "Graph networks generalize convolutions.", c.Text)
	assert.Equal(t, 120, c.InputTokens)
	assert.Equal(t, 14, c.OutputTokens)
}

func TestOllamaProvider_Summarize_ModelNotFound(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(ollamaErrorResponse{Error: `model "llama9" not found, try pulling it first`})
	})

	_, err := NewOllamaProvider(OllamaConfig{BaseURL: server.URL, Model: "llama9"}, fastRetries(2)).
		Summarize(context.Background(), "x")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "not found")
}

func TestOllamaProvider_Embed(t *testing.T) {
	var requests []ollamaEmbedRequest

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)

		resp := ollamaEmbedResponse{Model: req.Model}
		for _, in := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{float32(len(in)), 0, 1})
		}
		json.NewEncoder(w).Encode(resp)
	})

	opts := fastRetries(0)
	opts.BatchSize = 2
	provider := NewOllamaProvider(OllamaConfig{BaseURL: server.URL, Model: "all-minilm"}, opts)

	vectors, err := provider.Embed(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)

	require.Len(t, requests, 3)
	assert.Equal(t, "all-minilm", requests[0].Model)
	assert.Equal(t, []string{"eeeee"}, requests[2].Input)
	require.Len(t, vectors, 5)
	for i, v := range vectors {
		assert.Equal(t, float32(i+1), v[0])
	}
}

func TestOllamaProvider_Embed_CountMismatch(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1}}})
	})

	_, err := NewOllamaProvider(OllamaConfig{BaseURL: server.URL}, fastRetries(0)).
		Embed(context.Background(), []string{"a", "b", "c"})
	assert.ErrorContains(t, err, "expected 3 embeddings, got 1")
}

func TestOllamaProvider_NetworkErrorIsTransient(t *testing.T) {
	_, err := NewOllamaProvider(OllamaConfig{BaseURL: "http://127.0.0.1:1"}, fastRetries(1)).
		Embed(context.Background(), []string{"a"})

	require.Error(t, err)
	assert.True(t, isTransientError(err))
	assert.Equal(t, "network", ErrorType(err))
	assert.Contains(t, err.Error(), "all 1 retries exhausted")
}
