// Package llm provides the language-model providers used for abstract
// summarization and text embedding.
//
// Three providers are supported: a local Ollama server, any OpenAI-compatible
// endpoint, and Anthropic (summarization only). All of them talk plain HTTP
// and share the same retry policy: transient failures (network errors, 429,
// 5xx) are retried with exponential backoff, everything else fails at once.
//
// Example usage:
//
//	summarizer, err := llm.NewSummarizer(llm.FactoryConfig{Provider: "ollama", ...})
//	c, err := summarizer.Summarize(ctx, abstract)
//	fmt.Println(c.Text)
package llm

import "context"

// SummaryPrompt prefixes every abstract sent for summarization.
const SummaryPrompt = "summarize: "

// summarySystemPrompt steers chat models towards a short plain-text summary.
const summarySystemPrompt = "You summarize research paper abstracts. Reply with a concise summary of two or three sentences in plain text, without preamble."

// Completion is the text produced by a summarization call.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Summarizer produces a short summary of a text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (*Completion, error)
	Provider() string
	Model() string
}

// Embedder maps texts to dense vectors. The result has one vector per input,
// in input order, all of the same dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Provider() string
	Model() string
}

// batches splits texts into consecutive chunks of at most size elements.
func batches(texts []string, size int) [][]string {
	if size <= 0 || size >= len(texts) {
		return [][]string{texts}
	}
	out := make([][]string, 0, (len(texts)+size-1)/size)
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		out = append(out, texts[start:end])
	}
	return out
}
