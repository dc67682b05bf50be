package repository

import "context"

// QueryCacheRepository stores when each query string was last aggregated.
// Keys are matched exactly, including case and surrounding whitespace.
type QueryCacheRepository interface {
	// LastFetched returns the stored Unix timestamp for query. The boolean
	// is false when the query has never been recorded.
	LastFetched(ctx context.Context, query string) (int64, bool, error)

	// Touch records unix as the last fetch time of query, replacing any
	// previous value.
	Touch(ctx context.Context, query string, unix int64) error
}
