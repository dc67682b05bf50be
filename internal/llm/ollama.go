package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Default values for the Ollama provider.
const (
	defaultOllamaBaseURL        = "http://localhost:11434"
	defaultOllamaModel          = "llama3.2"
	defaultOllamaEmbeddingModel = "all-minilm"
	defaultOllamaMaxTokens      = 200
)

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model           string      `json:"model"`
	Embeddings      [][]float32 `json:"embeddings"`
	PromptEvalCount int         `json:"prompt_eval_count"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}

// OllamaConfig holds the parameters needed to create an Ollama provider.
type OllamaConfig struct {
	// BaseURL is the Ollama server address (empty means http://localhost:11434).
	BaseURL string
	// Model is the model tag, e.g. "llama3.2" for chat or "all-minilm" for embeddings.
	Model string
}

// OllamaProvider implements Summarizer and Embedder against a local Ollama
// server. No API key is involved.
type OllamaProvider struct {
	httpClient  *http.Client
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	batchSize   int
	retry       retryPolicy
}

var (
	_ Summarizer = (*OllamaProvider)(nil)
	_ Embedder   = (*OllamaProvider)(nil)
)

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(cfg OllamaConfig, opts ProviderOptions) *OllamaProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}

	opts = opts.withDefaults(defaultOllamaMaxTokens, time.Second)

	return &OllamaProvider{
		httpClient:  newHTTPClient(opts.Timeout),
		model:       model,
		baseURL:     baseURL,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		batchSize:   opts.BatchSize,
		retry:       retryPolicy{maxRetries: opts.MaxRetries, baseDelay: opts.RetryDelay},
	}
}

// Summarize calls /api/chat without streaming.
func (p *OllamaProvider) Summarize(ctx context.Context, text string) (*Completion, error) {
	req := ollamaChatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: summarySystemPrompt},
			{Role: "user", Content: SummaryPrompt + text},
		},
		Options: ollamaOptions{Temperature: p.temperature, NumPredict: p.maxTokens},
	}

	var resp ollamaChatResponse
	err := p.retry.do(ctx, "ollama", func() error {
		return postJSON(ctx, p.httpClient, "ollama", p.baseURL+"/api/chat", nil, req, &resp, parseOllamaAPIError)
	})
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(resp.Message.Content)
	if content == "" {
		return nil, fmt.Errorf("ollama: empty completion")
	}

	model := resp.Model
	if model == "" {
		model = p.model
	}

	return &Completion{
		Text:         content,
		Model:        model,
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
	}, nil
}

// Embed calls /api/embed, which accepts a batch of inputs and answers in
// input order.
func (p *OllamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for _, chunk := range batches(texts, p.batchSize) {
		req := ollamaEmbedRequest{Model: p.model, Input: chunk}

		var resp ollamaEmbedResponse
		err := p.retry.do(ctx, "ollama", func() error {
			return postJSON(ctx, p.httpClient, "ollama", p.baseURL+"/api/embed", nil, req, &resp, parseOllamaAPIError)
		})
		if err != nil {
			return nil, err
		}

		if len(resp.Embeddings) != len(chunk) {
			return nil, fmt.Errorf("ollama: expected %d embeddings, got %d", len(chunk), len(resp.Embeddings))
		}
		out = append(out, resp.Embeddings...)
	}
	return out, nil
}

// Provider returns the provider name.
func (p *OllamaProvider) Provider() string {
	return "ollama"
}

// Model returns the model tag being used.
func (p *OllamaProvider) Model() string {
	return p.model
}

func parseOllamaAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Provider:   "ollama",
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp ollamaErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		apiErr.Message = errResp.Error
	}
	return apiErr
}
