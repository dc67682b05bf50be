// Package config provides configuration management for the paper retrieval service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "PAPERRETRIEVAL"

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Storage driver names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Query cache backends.
const (
	CacheBackendSQL   = "sql"
	CacheBackendRedis = "redis"
)

// LLM provider names.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all configuration for the paper retrieval service.
type Config struct {
	// Server contains HTTP/gRPC server settings.
	Server ServerConfig `mapstructure:"server"`
	// Storage selects and configures the corpus store engine.
	Storage StorageConfig `mapstructure:"storage"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Retrieval contains ranking and refresh settings.
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	// PaperSources contains paper source API configurations.
	PaperSources PaperSourcesConfig `mapstructure:"paper_sources"`
	// LLM contains connection settings shared by embedding and summarization.
	LLM LLMConfig `mapstructure:"llm"`
	// Embedding selects the embedding model used for semantic scoring.
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	// Summarizer selects the model used to summarize abstracts.
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
	// Qdrant contains embedding cache settings.
	Qdrant QdrantConfig `mapstructure:"qdrant"`
	// Kafka contains event publisher and refresh listener settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// QueryCache selects the staleness cache backend.
	QueryCache QueryCacheConfig `mapstructure:"query_cache"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// GRPCPort is the gRPC health server port (default: 9090).
	GRPCPort int `mapstructure:"grpc_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response. A search
	// may refresh the corpus and summarize five abstracts, so this is long.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// CORSAllowedOrigins lists origins allowed by the CORS middleware.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// StorageConfig selects the corpus store engine.
type StorageConfig struct {
	// Driver is the storage engine (postgres, sqlite).
	Driver string `mapstructure:"driver"`
	// SQLitePath is the SQLite database file (":memory:" for an in-memory store).
	SQLitePath string `mapstructure:"sqlite_path"`
	// MigrationPath overrides the embedded migrations with a directory on disk.
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun applies pending migrations on startup.
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 20).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 2).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// StatementCacheCapacity is the size of the prepared statement cache.
	StatementCacheCapacity int `mapstructure:"statement_cache_capacity"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// RetrievalConfig holds ranking and refresh settings.
type RetrievalConfig struct {
	// TopK is the number of papers returned per search (default: 5).
	TopK int `mapstructure:"top_k"`
	// PerSourceLimit bounds the records requested from each source (default: 20).
	PerSourceLimit int `mapstructure:"per_source_limit"`
	// SourceTimeout bounds each upstream search (default: 10s).
	SourceTimeout time.Duration `mapstructure:"source_timeout"`
	// StalenessThreshold is how long a fetched query stays fresh (default: 7 days).
	StalenessThreshold time.Duration `mapstructure:"staleness_threshold"`
	// BreakerThreshold is the number of consecutive failures after which a
	// source is skipped for BreakerCooldown (0 disables the breaker).
	BreakerThreshold int `mapstructure:"breaker_threshold"`
	// BreakerCooldown is how long an open breaker skips its source.
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

// PaperSourcesConfig holds configuration for all paper source APIs.
type PaperSourcesConfig struct {
	// ArXiv contains arXiv API settings.
	ArXiv PaperSourceConfig `mapstructure:"arxiv"`
	// SemanticScholar contains Semantic Scholar API settings.
	SemanticScholar PaperSourceConfig `mapstructure:"semantic_scholar"`
	// OpenAlex contains OpenAlex API settings.
	OpenAlex PaperSourceConfig `mapstructure:"openalex"`
}

// PaperSourceConfig holds configuration for a single paper source API.
type PaperSourceConfig struct {
	// Enabled controls whether this source is used.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the API key (loaded from environment variable, e.g. PAPERRETRIEVAL_PAPER_SOURCES_SEMANTIC_SCHOLAR_API_KEY).
	APIKey string `mapstructure:"-"`
	// Email is the contact address sent to APIs with a polite pool.
	Email string `mapstructure:"email"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
}

// LLMConfig holds connection settings for model providers.
type LLMConfig struct {
	// Timeout is the timeout for a single model API call.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for transient failures.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// Ollama contains Ollama-specific settings.
	Ollama OllamaConfig `mapstructure:"ollama"`
	// OpenAI contains OpenAI-compatible API settings.
	OpenAI OpenAIConfig `mapstructure:"openai"`
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

// OllamaConfig holds Ollama settings.
type OllamaConfig struct {
	// BaseURL is the Ollama server URL.
	BaseURL string `mapstructure:"base_url"`
}

// OpenAIConfig holds OpenAI-specific settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (loaded from PAPERRETRIEVAL_LLM_OPENAI_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// BaseURL is the OpenAI API base URL (for compatible endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic-specific settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key (loaded from PAPERRETRIEVAL_LLM_ANTHROPIC_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// BaseURL is the Anthropic API base URL.
	BaseURL string `mapstructure:"base_url"`
}

// EmbeddingConfig selects the embedding model.
type EmbeddingConfig struct {
	// Provider is the embedding provider (ollama, openai).
	Provider string `mapstructure:"provider"`
	// Model is the embedding model name.
	Model string `mapstructure:"model"`
	// BatchSize bounds texts sent per embedding request.
	BatchSize int `mapstructure:"batch_size"`
}

// SummarizerConfig selects the summarization model.
type SummarizerConfig struct {
	// Provider is the summarization provider (ollama, openai, anthropic).
	Provider string `mapstructure:"provider"`
	// Model is the summarization model name.
	Model string `mapstructure:"model"`
	// MaxTokens bounds the length of each summary.
	MaxTokens int `mapstructure:"max_tokens"`
	// Temperature is the sampling temperature (0 for deterministic output).
	Temperature float64 `mapstructure:"temperature"`
	// Concurrency bounds summaries generated in parallel.
	Concurrency int `mapstructure:"concurrency"`
}

// QdrantConfig holds Qdrant embedding cache settings.
type QdrantConfig struct {
	// Enabled puts the Qdrant cache in front of the embedding provider.
	Enabled bool `mapstructure:"enabled"`
	// Address is the Qdrant gRPC address.
	Address string `mapstructure:"address"`
	// APIKey is the Qdrant API key (loaded from PAPERRETRIEVAL_QDRANT_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// CollectionName is the name of the collection holding cached embeddings.
	CollectionName string `mapstructure:"collection_name"`
	// VectorSize is the embedding dimension (must match the embedding model).
	VectorSize uint64 `mapstructure:"vector_size"`
}

// KafkaConfig holds Kafka settings.
type KafkaConfig struct {
	// Enabled controls whether Kafka publishing is active.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic receives papers.refreshed events.
	Topic string `mapstructure:"topic"`
	// RefreshTopic carries refresh requests consumed by the worker.
	RefreshTopic string `mapstructure:"refresh_topic"`
	// GroupID is the consumer group of the refresh worker.
	GroupID string `mapstructure:"group_id"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// QueryCacheConfig selects the staleness cache backend.
type QueryCacheConfig struct {
	// Backend is where fetch timestamps live (sql, redis).
	Backend string `mapstructure:"backend"`
	// Redis contains Redis settings, used when Backend is "redis".
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	// Address is the Redis host:port.
	Address string `mapstructure:"address"`
	// Password is the Redis password (loaded from PAPERRETRIEVAL_QUERY_CACHE_REDIS_PASSWORD env var).
	Password string `mapstructure:"-"`
	// DB is the Redis logical database.
	DB int `mapstructure:"db"`
	// KeyPrefix namespaces cache keys.
	KeyPrefix string `mapstructure:"key_prefix"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	if c.StatementCacheCapacity > 0 {
		params.Set("statement_cache_capacity", fmt.Sprintf("%d", c.StatementCacheCapacity))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// GRPCAddress returns the gRPC server address.
func (c *ServerConfig) GRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/paper-retrieval-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	// Model provider API keys.
	cfg.LLM.OpenAI.APIKey = os.Getenv(EnvPrefix + "_LLM_OPENAI_API_KEY")
	cfg.LLM.Anthropic.APIKey = os.Getenv(EnvPrefix + "_LLM_ANTHROPIC_API_KEY")

	// Paper source API keys.
	cfg.PaperSources.SemanticScholar.APIKey = os.Getenv(EnvPrefix + "_PAPER_SOURCES_SEMANTIC_SCHOLAR_API_KEY")

	// Infrastructure credentials.
	cfg.Qdrant.APIKey = os.Getenv(EnvPrefix + "_QDRANT_API_KEY")
	cfg.QueryCache.Redis.Password = os.Getenv(EnvPrefix + "_QUERY_CACHE_REDIS_PASSWORD")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors_allowed_origins", []string{"*"})

	// Storage defaults
	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.sqlite_path", "papers.db")
	v.SetDefault("storage.migration_path", "")
	v.SetDefault("storage.migration_auto_run", true)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "paperretrieval")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "paper_retrieval")
	// Default to "require" for production security. Use PAPERRETRIEVAL_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.statement_cache_capacity", 512)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "paper_retrieval")

	// Retrieval defaults
	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.per_source_limit", 20)
	v.SetDefault("retrieval.source_timeout", "10s")
	v.SetDefault("retrieval.staleness_threshold", "168h")
	v.SetDefault("retrieval.breaker_threshold", 5)
	v.SetDefault("retrieval.breaker_cooldown", "60s")

	// Paper sources defaults - arXiv
	v.SetDefault("paper_sources.arxiv.enabled", true)
	v.SetDefault("paper_sources.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("paper_sources.arxiv.timeout", "10s")
	v.SetDefault("paper_sources.arxiv.rate_limit", 1.0) // arXiv asks for one request every few seconds

	// Paper sources defaults - Semantic Scholar
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("paper_sources.semantic_scholar.enabled", true)
	v.SetDefault("paper_sources.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("paper_sources.semantic_scholar.timeout", "10s")
	v.SetDefault("paper_sources.semantic_scholar.rate_limit", 1.0)

	// Paper sources defaults - OpenAlex
	v.SetDefault("paper_sources.openalex.enabled", true)
	v.SetDefault("paper_sources.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("paper_sources.openalex.email", "")
	v.SetDefault("paper_sources.openalex.timeout", "10s")
	v.SetDefault("paper_sources.openalex.rate_limit", 10.0)

	// LLM defaults
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", "1s")
	v.SetDefault("llm.ollama.base_url", "http://localhost:11434")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com")

	// Embedding defaults
	v.SetDefault("embedding.provider", ProviderOllama)
	v.SetDefault("embedding.model", "all-minilm")
	v.SetDefault("embedding.batch_size", 64)

	// Summarizer defaults
	v.SetDefault("summarizer.provider", ProviderOllama)
	v.SetDefault("summarizer.model", "llama3.2")
	v.SetDefault("summarizer.max_tokens", 200)
	v.SetDefault("summarizer.temperature", 0.0)
	v.SetDefault("summarizer.concurrency", 5)

	// Qdrant defaults
	v.SetDefault("qdrant.enabled", false)
	v.SetDefault("qdrant.address", "localhost:6334")
	v.SetDefault("qdrant.collection_name", "abstract_embeddings")
	v.SetDefault("qdrant.vector_size", 384) // all-minilm

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "papers.events")
	v.SetDefault("kafka.refresh_topic", "papers.refresh-requests")
	v.SetDefault("kafka.group_id", "paper-retrieval-worker")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")

	// Query cache defaults
	v.SetDefault("query_cache.backend", CacheBackendSQL)
	v.SetDefault("query_cache.redis.address", "localhost:6379")
	v.SetDefault("query_cache.redis.db", 0)
	v.SetDefault("query_cache.redis.key_prefix", "paperretrieval:query:")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.GRPCPort <= 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.Server.GRPCPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	// Validate storage config
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required when storage driver is %q", DriverSQLite)
		}
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
		}
	default:
		return fmt.Errorf("invalid storage driver: %q", c.Storage.Driver)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate retrieval config
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top_k must be positive")
	}
	if c.Retrieval.PerSourceLimit <= 0 {
		return fmt.Errorf("retrieval per_source_limit must be positive")
	}
	if c.Retrieval.StalenessThreshold < time.Second {
		return fmt.Errorf("retrieval staleness_threshold must be at least 1s")
	}
	if c.Retrieval.BreakerThreshold < 0 {
		return fmt.Errorf("retrieval breaker_threshold must not be negative")
	}

	// Validate that the configured providers have their API keys set.
	switch strings.ToLower(c.Embedding.Provider) {
	case ProviderOllama:
	case ProviderOpenAI:
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("embedding provider %q requires %s_LLM_OPENAI_API_KEY to be set", c.Embedding.Provider, EnvPrefix)
		}
	default:
		return fmt.Errorf("unsupported embedding provider: %q", c.Embedding.Provider)
	}

	switch strings.ToLower(c.Summarizer.Provider) {
	case ProviderOllama:
	case ProviderOpenAI:
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("summarizer provider %q requires %s_LLM_OPENAI_API_KEY to be set", c.Summarizer.Provider, EnvPrefix)
		}
	case ProviderAnthropic:
		if c.LLM.Anthropic.APIKey == "" {
			return fmt.Errorf("summarizer provider %q requires %s_LLM_ANTHROPIC_API_KEY to be set", c.Summarizer.Provider, EnvPrefix)
		}
	default:
		return fmt.Errorf("unsupported summarizer provider: %q", c.Summarizer.Provider)
	}
	if c.Summarizer.Concurrency <= 0 {
		return fmt.Errorf("summarizer concurrency must be positive")
	}

	// Validate optional infrastructure.
	if c.Qdrant.Enabled && c.Qdrant.VectorSize == 0 {
		return fmt.Errorf("qdrant vector_size must be positive when qdrant is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}

	switch c.QueryCache.Backend {
	case CacheBackendSQL:
	case CacheBackendRedis:
		if c.QueryCache.Redis.Address == "" {
			return fmt.Errorf("redis address is required when query cache backend is %q", CacheBackendRedis)
		}
	default:
		return fmt.Errorf("invalid query cache backend: %q", c.QueryCache.Backend)
	}

	return nil
}
