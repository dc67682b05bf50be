// Package app assembles the retrieval pipeline from configuration. The HTTP
// server and the refresh worker share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-retrieval-service/internal/aggregator"
	"github.com/helixir/paper-retrieval-service/internal/config"
	"github.com/helixir/paper-retrieval-service/internal/database"
	"github.com/helixir/paper-retrieval-service/internal/events"
	"github.com/helixir/paper-retrieval-service/internal/llm"
	"github.com/helixir/paper-retrieval-service/internal/observability"
	"github.com/helixir/paper-retrieval-service/internal/papersources"
	"github.com/helixir/paper-retrieval-service/internal/papersources/arxiv"
	"github.com/helixir/paper-retrieval-service/internal/papersources/openalex"
	"github.com/helixir/paper-retrieval-service/internal/papersources/semanticscholar"
	"github.com/helixir/paper-retrieval-service/internal/pipeline"
	"github.com/helixir/paper-retrieval-service/internal/qdrant"
	"github.com/helixir/paper-retrieval-service/internal/querycache"
	"github.com/helixir/paper-retrieval-service/internal/ranking"
	"github.com/helixir/paper-retrieval-service/internal/repository"
	"github.com/helixir/paper-retrieval-service/internal/summarize"
)

// App holds the assembled pipeline and the resources it owns.
type App struct {
	// Pipeline serves searches and refreshes.
	Pipeline *pipeline.Service
	// Checks are the dependencies a readiness probe should ping, by name.
	Checks map[string]database.Pinger

	closers []func() error
	logger  zerolog.Logger
}

// Build opens storage, runs migrations when configured and wires every
// pipeline stage. metrics may be nil. On error, everything opened so far is
// closed.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) (_ *App, err error) {
	a := &App{
		Checks: make(map[string]database.Pinger),
		logger: logger,
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	papers, queries, err := a.openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if n, err := papers.Count(ctx); err == nil {
		logger.Info().Str("driver", cfg.Storage.Driver).Int("papers", n).Msg("corpus store opened")
	}

	if cfg.QueryCache.Backend == config.CacheBackendRedis {
		rc := cfg.QueryCache.Redis
		rdb, err := querycache.DialRedis(ctx, rc.Address, rc.Password, rc.DB)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		queries = querycache.NewRedisStore(rdb, rc.KeyPrefix)
		logger.Info().Str("address", rc.Address).Msg("query cache backed by redis")
	}

	embedder, err := a.buildEmbedder(ctx, cfg, metrics)
	if err != nil {
		return nil, err
	}

	summarizer, err := llm.NewSummarizer(factoryConfig(cfg, cfg.Summarizer.Provider, cfg.Summarizer.Model, llm.ProviderOptions{
		Temperature: cfg.Summarizer.Temperature,
		MaxTokens:   cfg.Summarizer.MaxTokens,
	}))
	if err != nil {
		return nil, fmt.Errorf("create summarizer: %w", err)
	}
	summarizer = llm.InstrumentSummarizer(summarizer, metrics)

	publisher, err := a.buildPublisher(cfg, metrics)
	if err != nil {
		return nil, err
	}

	var registryOpts []papersources.RegistryOption
	if cfg.Retrieval.BreakerThreshold > 0 {
		registryOpts = append(registryOpts, papersources.WithCircuitBreaker(papersources.BreakerConfig{
			ConsecutiveThreshold: cfg.Retrieval.BreakerThreshold,
			Cooldown:             cfg.Retrieval.BreakerCooldown,
		}))
	}
	registry := papersources.NewRegistry(cfg.Retrieval.SourceTimeout, registryOpts...)
	RegisterPaperSources(registry, cfg, logger)

	a.Pipeline = pipeline.New(pipeline.Dependencies{
		Aggregator: aggregator.New(registry, logger, metrics),
		Cache: querycache.New(queries, cfg.Retrieval.StalenessThreshold,
			querycache.WithMetrics(metrics)),
		Papers: papers,
		Ranker: ranking.NewEngine(embedder,
			ranking.WithLogger(logger),
			ranking.WithMetrics(metrics)),
		Summarizer: summarize.NewStage(summarizer,
			summarize.WithConcurrency(cfg.Summarizer.Concurrency),
			summarize.WithLogger(logger),
			summarize.WithMetrics(metrics)),
		Publisher: publisher,
	}, pipeline.Config{
		TopK:           cfg.Retrieval.TopK,
		PerSourceLimit: cfg.Retrieval.PerSourceLimit,
	}, pipeline.WithLogger(logger), pipeline.WithMetrics(metrics))

	logger.Info().
		Str("storage", cfg.Storage.Driver).
		Str("query_cache", cfg.QueryCache.Backend).
		Str("embedding_provider", embedder.Provider()).
		Str("embedding_model", embedder.Model()).
		Str("summarizer_provider", summarizer.Provider()).
		Str("summarizer_model", summarizer.Model()).
		Int("sources", len(registry.EnabledSources())).
		Bool("qdrant", cfg.Qdrant.Enabled).
		Bool("kafka", cfg.Kafka.Enabled).
		Msg("pipeline assembled")

	return a, nil
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// paperStore is the corpus store contract shared by both engines.
type paperStore interface {
	pipeline.PaperStore
	Count(ctx context.Context) (int, error)
}

func (a *App) openStorage(ctx context.Context, cfg *config.Config) (paperStore, querycache.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := database.New(ctx, &cfg.Database, a.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, func() error { db.Close(); return nil })
		a.Checks["database"] = db

		if cfg.Storage.MigrationAutoRun {
			m, err := database.NewPostgresMigrator(db, cfg.Storage.MigrationPath, a.logger)
			if err != nil {
				return nil, nil, fmt.Errorf("create migrator: %w", err)
			}
			if err := runMigrations(m); err != nil {
				return nil, nil, err
			}
		}
		return repository.NewPgPaperRepository(db), repository.NewPgQueryCacheRepository(db), nil

	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.Storage.SQLitePath, a.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.Checks["database"] = db

		// An in-memory store is empty on every start, so it is always migrated.
		if cfg.Storage.MigrationAutoRun || cfg.Storage.SQLitePath == database.MemoryPath {
			m, err := database.NewSQLiteMigrator(db, cfg.Storage.MigrationPath, a.logger)
			if err != nil {
				return nil, nil, fmt.Errorf("create migrator: %w", err)
			}
			if err := runMigrations(m); err != nil {
				return nil, nil, err
			}
		}
		return repository.NewSQLitePaperRepository(db.DB()), repository.NewSQLiteQueryCacheRepository(db.DB()), nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage driver: %q", cfg.Storage.Driver)
	}
}

func runMigrations(m *database.Migrator) error {
	upErr := m.Up()
	closeErr := m.Close()
	if upErr != nil {
		return fmt.Errorf("run migrations: %w", upErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close migrator: %w", closeErr)
	}
	return nil
}

func (a *App) buildEmbedder(ctx context.Context, cfg *config.Config, metrics *observability.Metrics) (llm.Embedder, error) {
	embedder, err := llm.NewEmbedder(factoryConfig(cfg, cfg.Embedding.Provider, cfg.Embedding.Model, llm.ProviderOptions{
		BatchSize: cfg.Embedding.BatchSize,
	}))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	embedder = llm.InstrumentEmbedder(embedder, metrics)

	if !cfg.Qdrant.Enabled {
		return embedder, nil
	}

	client, err := qdrant.NewClient(qdrant.Config{
		Address:        cfg.Qdrant.Address,
		APIKey:         cfg.Qdrant.APIKey,
		CollectionName: cfg.Qdrant.CollectionName,
		VectorSize:     cfg.Qdrant.VectorSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	a.Checks["qdrant"] = client

	if err := client.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("ensure qdrant collection: %w", err)
	}
	a.logger.Info().
		Str("address", cfg.Qdrant.Address).
		Str("collection", cfg.Qdrant.CollectionName).
		Msg("embedding cache backed by qdrant")

	return qdrant.NewCachingEmbedder(embedder, client, a.logger, metrics), nil
}

func (a *App) buildPublisher(cfg *config.Config, metrics *observability.Metrics) (events.Publisher, error) {
	if !cfg.Kafka.Enabled {
		return events.NopPublisher{}, nil
	}
	pub, err := events.NewKafkaPublisher(events.PublisherConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		BatchSize:    cfg.Kafka.BatchSize,
		BatchTimeout: cfg.Kafka.BatchTimeout,
	}, a.logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("create event publisher: %w", err)
	}
	a.closers = append(a.closers, pub.Close)
	return pub, nil
}

// factoryConfig maps the shared LLM settings plus one model selection onto
// the llm package's configuration.
func factoryConfig(cfg *config.Config, provider, model string, opts llm.ProviderOptions) llm.FactoryConfig {
	opts.Timeout = cfg.LLM.Timeout
	opts.MaxRetries = cfg.LLM.MaxRetries
	opts.RetryDelay = cfg.LLM.RetryDelay

	return llm.FactoryConfig{
		Provider: provider,
		Model:    model,
		Options:  opts,
		Ollama:   llm.OllamaConfig{BaseURL: cfg.LLM.Ollama.BaseURL},
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.LLM.Anthropic.APIKey,
			BaseURL: cfg.LLM.Anthropic.BaseURL,
		},
	}
}

// RegisterPaperSources registers the enabled sources in aggregation order:
// arXiv, Semantic Scholar, OpenAlex.
func RegisterPaperSources(registry *papersources.Registry, cfg *config.Config, logger zerolog.Logger) {
	if c := cfg.PaperSources.ArXiv; c.Enabled {
		registry.Register(arxiv.New(arxiv.Config{
			BaseURL:    c.BaseURL,
			Timeout:    c.Timeout,
			RateLimit:  c.RateLimit,
			MaxResults: cfg.Retrieval.PerSourceLimit,
			Enabled:    true,
		}))
		logger.Info().Msg("registered paper source: arXiv")
	}

	if c := cfg.PaperSources.SemanticScholar; c.Enabled {
		registry.Register(semanticscholar.NewClient(semanticscholar.Config{
			BaseURL:    c.BaseURL,
			APIKey:     c.APIKey,
			Timeout:    c.Timeout,
			RateLimit:  c.RateLimit,
			MaxResults: cfg.Retrieval.PerSourceLimit,
			Enabled:    true,
		}, nil))
		logger.Info().Msg("registered paper source: Semantic Scholar")
	}

	if c := cfg.PaperSources.OpenAlex; c.Enabled {
		registry.Register(openalex.New(openalex.Config{
			BaseURL:    c.BaseURL,
			Email:      c.Email,
			Timeout:    c.Timeout,
			RateLimit:  c.RateLimit,
			MaxResults: cfg.Retrieval.PerSourceLimit,
			Enabled:    true,
		}))
		logger.Info().Msg("registered paper source: OpenAlex")
	}
}
