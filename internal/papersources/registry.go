package papersources

import (
	"context"
	"sync"
	"time"

	"github.com/helixir/paper-retrieval-service/internal/domain"
)

// DefaultSourceTimeout bounds each upstream search. A source that exceeds it
// is reported as failed.
const DefaultSourceTimeout = 10 * time.Second

// SourceResult holds the result of a search from one source.
type SourceResult struct {
	// Source identifies which paper source provided the result.
	Source domain.SourceType

	// Result contains the search results if the search succeeded.
	// Will be nil if Error is non-nil.
	Result *SearchResult

	// Error contains the failure if the search failed.
	// Will be nil if Result is non-nil.
	Error *domain.SourceError

	// Duration is the wall time spent on this source.
	Duration time.Duration
}

// Papers returns the records of a successful search, or nil when the source failed.
func (r SourceResult) Papers() []domain.Paper {
	if r.Error != nil || r.Result == nil {
		return nil
	}
	return r.Result.Papers
}

// Registry manages paper sources and coordinates concurrent searches.
// Sources are kept in registration order, which is also the order of the
// results returned by SearchAll.
type Registry struct {
	mu      sync.RWMutex
	order   []domain.SourceType
	sources map[domain.SourceType]PaperSource
	timeout time.Duration

	// breakers is nil when circuit breaking is disabled.
	breakers   map[domain.SourceType]*CircuitBreaker
	breakerCfg BreakerConfig
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCircuitBreaker gives every registered source its own breaker.
func WithCircuitBreaker(cfg BreakerConfig) RegistryOption {
	return func(r *Registry) {
		r.breakers = make(map[domain.SourceType]*CircuitBreaker)
		r.breakerCfg = cfg
	}
}

// NewRegistry creates a new source registry. A non-positive timeout selects
// DefaultSourceTimeout.
func NewRegistry(timeout time.Duration, opts ...RegistryOption) *Registry {
	if timeout <= 0 {
		timeout = DefaultSourceTimeout
	}
	r := &Registry{
		sources: make(map[domain.SourceType]PaperSource),
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a source to the registry.
// If a source with the same type already exists, it is replaced in place and
// keeps its original position.
func (r *Registry) Register(source PaperSource) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := source.SourceType()
	if _, exists := r.sources[st]; !exists {
		r.order = append(r.order, st)
	}
	r.sources[st] = source
	if r.breakers != nil {
		r.breakers[st] = NewCircuitBreaker(r.breakerCfg)
	}
}

// BreakerState returns the breaker state of a source. Sources without a
// breaker report CircuitClosed.
func (r *Registry) BreakerState(sourceType domain.SourceType) CircuitState {
	r.mu.RLock()
	b := r.breakers[sourceType]
	r.mu.RUnlock()

	if b == nil {
		return CircuitClosed
	}
	return b.State()
}

// Get returns a source by type, or nil if not found.
func (r *Registry) Get(sourceType domain.SourceType) PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[sourceType]
}

// AllSources returns all registered sources in registration order.
func (r *Registry) AllSources() []PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]PaperSource, 0, len(r.order))
	for _, st := range r.order {
		sources = append(sources, r.sources[st])
	}
	return sources
}

// EnabledSources returns only enabled sources, in registration order.
func (r *Registry) EnabledSources() []PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]PaperSource, 0, len(r.order))
	for _, st := range r.order {
		if s := r.sources[st]; s.IsEnabled() {
			sources = append(sources, s)
		}
	}
	return sources
}

// Timeout returns the per-source search timeout.
func (r *Registry) Timeout() time.Duration {
	return r.timeout
}

// SearchAll searches all enabled sources concurrently and returns one
// SourceResult per source in registration order. Each source runs under its
// own timeout; errors are not filtered.
func (r *Registry) SearchAll(ctx context.Context, params SearchParams) []SourceResult {
	sources := r.EnabledSources()
	if len(sources) == 0 {
		return nil
	}

	results := make([]SourceResult, len(sources))
	var wg sync.WaitGroup

	for i, source := range sources {
		wg.Add(1)
		go func(i int, s PaperSource) {
			defer wg.Done()
			results[i] = r.searchOne(ctx, s, params)
		}(i, source)
	}

	wg.Wait()
	return results
}

func (r *Registry) searchOne(ctx context.Context, s PaperSource, params SearchParams) SourceResult {
	out := SourceResult{Source: s.SourceType()}

	r.mu.RLock()
	breaker := r.breakers[s.SourceType()]
	r.mu.RUnlock()

	if breaker != nil {
		if err := breaker.Allow(); err != nil {
			out.Error = domain.NewSourceError(s.SourceType(), err)
			return out
		}
	}

	searchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	result, err := s.Search(searchCtx, params)
	out.Duration = time.Since(start)

	switch {
	case err != nil:
		out.Error = domain.NewSourceError(s.SourceType(), err)
	case result == nil:
		out.Result = &SearchResult{Source: s.SourceType()}
	default:
		out.Result = result
	}

	if breaker != nil {
		switch {
		case err == nil:
			breaker.Success()
		case ctx.Err() != nil:
			// Cancelled by the caller, not a source failure.
			breaker.Abort()
		default:
			breaker.Failure()
		}
	}
	return out
}
