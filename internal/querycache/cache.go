// Package querycache decides whether a research query must be re-aggregated
// from the upstream sources.
//
// A query is stale when it has never been fetched, or when more than the
// configured threshold (seven days by default) has elapsed since its last
// successful fetch. Timestamps are whole Unix seconds and keys are compared
// exactly, so "GNN" and "gnn" are tracked separately.
package querycache

import (
	"context"
	"fmt"
	"time"

	"github.com/helixir/paper-retrieval-service/internal/observability"
)

// DefaultThreshold is the age after which a fetched query becomes stale.
const DefaultThreshold = 7 * 24 * time.Hour

// Store persists last-fetched timestamps. It is satisfied by the
// QueryCacheRepository implementations and by RedisStore.
type Store interface {
	LastFetched(ctx context.Context, query string) (int64, bool, error)
	Touch(ctx context.Context, query string, unix int64) error
}

// Cache answers staleness questions on top of a Store.
type Cache struct {
	store     Store
	threshold int64
	now       func() time.Time
	metrics   *observability.Metrics
}

// Option configures optional Cache dependencies.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithMetrics records every staleness lookup.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New creates a Cache. A non-positive threshold selects DefaultThreshold.
// Sub-second precision of threshold is discarded.
func New(store Store, threshold time.Duration, opts ...Option) *Cache {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	c := &Cache{
		store:     store,
		threshold: int64(threshold / time.Second),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Threshold returns the staleness threshold.
func (c *Cache) Threshold() time.Duration {
	return time.Duration(c.threshold) * time.Second
}

// IsStale reports whether query needs a fresh aggregation. A query fetched
// exactly threshold seconds ago is still fresh.
func (c *Cache) IsStale(ctx context.Context, query string) (bool, error) {
	last, ok, err := c.store.LastFetched(ctx, query)
	if err != nil {
		return false, fmt.Errorf("query cache lookup: %w", err)
	}

	stale := !ok || c.now().Unix()-last > c.threshold

	if c.metrics != nil {
		c.metrics.RecordCacheLookup(stale)
	}
	return stale, nil
}

// Touch marks query as fetched now.
func (c *Cache) Touch(ctx context.Context, query string) error {
	if err := c.store.Touch(ctx, query, c.now().Unix()); err != nil {
		return fmt.Errorf("query cache touch: %w", err)
	}
	return nil
}
