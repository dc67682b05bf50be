package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Default values for the OpenAI provider.
const (
	defaultOpenAIBaseURL        = "https://api.openai.com/v1"
	defaultOpenAIModel          = "gpt-4o-mini"
	defaultOpenAIEmbeddingModel = "text-embedding-3-small"
	defaultOpenAIMaxTokens      = 256
	defaultOpenAIRetryDelay     = 2 * time.Second
)

// chatRequest represents the OpenAI Chat Completions API request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatMessage represents a single message in the chat conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse represents the OpenAI Chat Completions API response body.
type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// chatChoice represents a single completion choice.
type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// chatUsage contains token usage information.
type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// embeddingRequest is the OpenAI Embeddings API request body.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse is the OpenAI Embeddings API response body.
type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Model string          `json:"model"`
	Usage chatUsage       `json:"usage"`
}

type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// openAIErrorResponse represents an error response from the OpenAI API.
type openAIErrorResponse struct {
	Error openAIErrorDetail `json:"error"`
}

// openAIErrorDetail contains error details from the OpenAI API.
type openAIErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// OpenAIConfig holds the parameters needed to create an OpenAI provider.
// This is defined in the llm package to avoid importing the config package.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the model identifier (e.g., "gpt-4o-mini" or "text-embedding-3-small").
	Model string
	// BaseURL is the API base URL (empty means default). Any server speaking
	// the OpenAI wire format can be used.
	BaseURL string
}

// OpenAIProvider implements Summarizer and Embedder using the OpenAI API.
type OpenAIProvider struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	batchSize   int
	retry       retryPolicy
}

// NewOpenAIProvider creates a new OpenAI provider. The same provider serves
// chat completions and embeddings; which endpoint is used depends on the
// method called, so model should match the intended use.
func NewOpenAIProvider(cfg OpenAIConfig, opts ProviderOptions) *OpenAIProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	opts = opts.withDefaults(defaultOpenAIMaxTokens, defaultOpenAIRetryDelay)

	return &OpenAIProvider{
		httpClient:  newHTTPClient(opts.Timeout),
		apiKey:      cfg.APIKey,
		model:       model,
		baseURL:     baseURL,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		batchSize:   opts.BatchSize,
		retry:       retryPolicy{maxRetries: opts.MaxRetries, baseDelay: opts.RetryDelay},
	}
}

var (
	_ Summarizer = (*OpenAIProvider)(nil)
	_ Embedder   = (*OpenAIProvider)(nil)
)

// Summarize asks the chat model for a summary of text.
func (p *OpenAIProvider) Summarize(ctx context.Context, text string) (*Completion, error) {
	chatReq := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: summarySystemPrompt},
			{Role: "user", Content: SummaryPrompt + text},
		},
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	}

	var resp chatResponse
	err := p.retry.do(ctx, "openai", func() error {
		return postJSON(ctx, p.httpClient, "openai", p.baseURL+"/chat/completions",
			p.headers(), chatReq, &resp, parseOpenAIAPIError)
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices in response")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, fmt.Errorf("openai: empty completion")
	}

	model := resp.Model
	if model == "" {
		model = p.model
	}

	return &Completion{
		Text:         content,
		Model:        model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Embed returns one vector per text. Inputs are sent in batches of at most
// batchSize texts; the response order is restored from each item's index.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for _, chunk := range batches(texts, p.batchSize) {
		req := embeddingRequest{Model: p.model, Input: chunk}

		var resp embeddingResponse
		err := p.retry.do(ctx, "openai", func() error {
			return postJSON(ctx, p.httpClient, "openai", p.baseURL+"/embeddings",
				p.headers(), req, &resp, parseOpenAIAPIError)
		})
		if err != nil {
			return nil, err
		}

		if len(resp.Data) != len(chunk) {
			return nil, fmt.Errorf("openai: expected %d embeddings, got %d", len(chunk), len(resp.Data))
		}

		vectors := make([][]float32, len(chunk))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(chunk) || vectors[d.Index] != nil {
				return nil, fmt.Errorf("openai: invalid embedding index %d", d.Index)
			}
			vectors[d.Index] = d.Embedding
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// Provider returns the name of the LLM provider.
func (p *OpenAIProvider) Provider() string {
	return "openai"
}

// Model returns the model identifier being used.
func (p *OpenAIProvider) Model() string {
	return p.model
}

func (p *OpenAIProvider) headers() map[string]string {
	if p.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}

// parseOpenAIAPIError parses an OpenAI API error from the response status code and body.
func parseOpenAIAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Provider:   "openai",
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp openAIErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
		apiErr.Code = errResp.Error.Code
	}

	return apiErr
}
