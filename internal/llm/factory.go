package llm

import (
	"fmt"
	"time"
)

// Provider names accepted by the factories.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ProviderOptions are the call settings shared by every provider.
type ProviderOptions struct {
	// Timeout is the HTTP timeout per API call.
	Timeout time.Duration
	// MaxRetries is the maximum number of retries for transient failures.
	MaxRetries int
	// RetryDelay is the base delay between retries; it doubles per attempt.
	RetryDelay time.Duration
	// Temperature is the sampling temperature for completions.
	Temperature float64
	// MaxTokens caps the completion length.
	MaxTokens int
	// BatchSize caps the number of texts per embedding request (0 = no cap).
	BatchSize int
}

func (o ProviderOptions) withDefaults(maxTokens int, retryDelay time.Duration) ProviderOptions {
	if o.MaxTokens <= 0 {
		o.MaxTokens = maxTokens
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = retryDelay
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	return o
}

// FactoryConfig holds the parameters needed to create a provider.
// This is defined in the llm package to avoid importing the config package,
// keeping the llm package free of infrastructure dependencies.
type FactoryConfig struct {
	// Provider is the LLM provider name ("ollama", "openai" or "anthropic").
	Provider string
	// Model overrides the provider-specific model.
	Model string
	// Options are the shared call settings.
	Options ProviderOptions
	// Ollama contains Ollama-specific settings.
	Ollama OllamaConfig
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig
}

// NewSummarizer creates a Summarizer based on the configuration.
func NewSummarizer(cfg FactoryConfig) (Summarizer, error) {
	switch cfg.Provider {
	case ProviderOllama:
		return NewOllamaProvider(withModel(cfg.Ollama, cfg.Model, defaultOllamaModel), cfg.Options), nil
	case ProviderOpenAI:
		oc := cfg.OpenAI
		oc.Model = pick(cfg.Model, oc.Model, defaultOpenAIModel)
		return NewOpenAIProvider(oc, cfg.Options), nil
	case ProviderAnthropic:
		ac := cfg.Anthropic
		ac.Model = pick(cfg.Model, ac.Model, defaultAnthropicModel)
		return NewAnthropicProvider(ac, cfg.Options), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}

// NewEmbedder creates an Embedder based on the configuration. Anthropic has
// no embedding API and is rejected.
func NewEmbedder(cfg FactoryConfig) (Embedder, error) {
	switch cfg.Provider {
	case ProviderOllama:
		return NewOllamaProvider(withModel(cfg.Ollama, cfg.Model, defaultOllamaEmbeddingModel), cfg.Options), nil
	case ProviderOpenAI:
		oc := cfg.OpenAI
		oc.Model = pick(cfg.Model, oc.Model, defaultOpenAIEmbeddingModel)
		return NewOpenAIProvider(oc, cfg.Options), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q (supported: ollama, openai)", cfg.Provider)
	}
}

func withModel(c OllamaConfig, override, fallback string) OllamaConfig {
	c.Model = pick(override, c.Model, fallback)
	return c
}

// pick returns the first non-empty value.
func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
