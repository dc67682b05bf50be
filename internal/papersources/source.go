// Package papersources provides interfaces and types for academic paper source clients.
//
// Each upstream bibliographic API (arXiv, Semantic Scholar, OpenAlex) implements the
// PaperSource interface, allowing the aggregator to query every source with a unified
// API. Clients are responsible for mapping source-native fields into domain.Paper and
// for dropping records that lack a title or an abstract.
//
// Example usage:
//
//	source := openalex.New(cfg, httpClient)
//	result, err := source.Search(ctx, papersources.SearchParams{
//		Query:      "graph neural networks",
//		MaxResults: 20,
//	})
package papersources

import (
	"context"
	"time"

	"github.com/helixir/paper-retrieval-service/internal/domain"
)

// DefaultMaxResults is the per-source result bound used when a caller does not set one.
const DefaultMaxResults = 20

// SearchParams defines the parameters for searching academic papers.
type SearchParams struct {
	// Query is the search query string (required). It is passed to the
	// upstream API verbatim.
	Query string

	// MaxResults bounds the number of papers requested from the source.
	// A value of 0 uses the source's default limit.
	MaxResults int
}

// SearchResult contains the results from a paper source search operation.
type SearchResult struct {
	// Papers contains the complete records returned by the search, in the
	// order the upstream API returned them.
	Papers []domain.Paper

	// Dropped counts upstream records discarded because their title or
	// abstract was empty.
	Dropped int

	// Source identifies which paper source provided these results.
	Source domain.SourceType

	// SearchDuration is the time taken to execute the search,
	// including network latency and response parsing.
	SearchDuration time.Duration
}

// PaperSource defines the interface that all paper source clients must implement.
type PaperSource interface {
	// Search queries the paper source for papers matching the given parameters.
	// Implementations must respect context cancellation, apply rate limiting
	// and return only records that pass domain.Paper validation.
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// SourceType returns the type identifier for this paper source.
	SourceType() domain.SourceType

	// Name returns a human-readable name for logging and metrics.
	Name() string

	// IsEnabled returns whether this paper source is enabled by configuration.
	IsEnabled() bool
}

// Collector accumulates mapped records for a single search, dropping the
// ones that fail validation.
type Collector struct {
	source  domain.SourceType
	papers  []domain.Paper
	dropped int
}

// NewCollector creates a Collector for the given source with room for n records.
func NewCollector(source domain.SourceType, n int) *Collector {
	return &Collector{
		source: source,
		papers: make([]domain.Paper, 0, n),
	}
}

// Add validates and appends a record. It reports whether the record was kept.
func (c *Collector) Add(id, title, authors, abstract string) bool {
	p, err := domain.NewPaper(id, title, authors, abstract, c.source)
	if err != nil {
		c.dropped++
		return false
	}
	c.papers = append(c.papers, p)
	return true
}

// Result builds the SearchResult for the collected records.
func (c *Collector) Result(started time.Time) *SearchResult {
	return &SearchResult{
		Papers:         c.papers,
		Dropped:        c.dropped,
		Source:         c.source,
		SearchDuration: time.Since(started),
	}
}
