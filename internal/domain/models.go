// Package domain provides domain models for the paper retrieval service.
package domain

// SourceType represents the upstream bibliographic API that provided a paper.
// These values are persisted in the papers.source column.
type SourceType string

const (
	SourceTypeArXiv           SourceType = "arxiv"
	SourceTypeSemanticScholar SourceType = "semantic_scholar"
	SourceTypeOpenAlex        SourceType = "openalex"
)

// knownSources lists every source type the service can produce, in the
// default aggregation order.
var knownSources = []SourceType{
	SourceTypeArXiv,
	SourceTypeSemanticScholar,
	SourceTypeOpenAlex,
}

// KnownSources returns the supported source types in default aggregation order.
func KnownSources() []SourceType {
	out := make([]SourceType, len(knownSources))
	copy(out, knownSources)
	return out
}

// IsValid reports whether s is a supported source type.
func (s SourceType) IsValid() bool {
	for _, known := range knownSources {
		if s == known {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (s SourceType) String() string {
	return string(s)
}

// QueryCacheEntry records when a query string was last aggregated from the
// upstream sources. LastFetched is a Unix timestamp in seconds.
type QueryCacheEntry struct {
	Query       string
	LastFetched int64
}
