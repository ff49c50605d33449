package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration
type Config struct {
	// Environment
	Env      Environment `envconfig:"ENV" default:"development"`
	LogLevel string      `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool        `envconfig:"DEBUG" default:"false"`

	// Application
	App AppConfig

	// Embeddings
	Embeddings EmbeddingsConfig

	// Vector store
	Qdrant QdrantConfig

	// Generation backends
	Ollama OllamaConfig
	Groq   GroqConfig

	// Pipeline behaviour
	Generation GenerationConfig

	// Corpus ingestion
	Corpus CorpusConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Rate Limits
	RateLimits RateLimitConfig
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"testweave"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"APP_LOG_LEVEL" default:"info"`
}

// EmbeddingsConfig holds embedding service settings
type EmbeddingsConfig struct {
	BaseURL     string        `envconfig:"EMBEDDINGS_BASE_URL" default:"http://localhost:11434"`
	Model       string        `envconfig:"EMBEDDINGS_MODEL" default:"nomic-embed-text"`
	Timeout     time.Duration `envconfig:"EMBEDDINGS_TIMEOUT" default:"30s"`
	CacheSize   int           `envconfig:"EMBEDDINGS_CACHE_SIZE" default:"10000"`
	RedisCache  bool          `envconfig:"EMBEDDINGS_REDIS_CACHE" default:"false"`
	RedisTTL    time.Duration `envconfig:"EMBEDDINGS_REDIS_TTL" default:"24h"`
	MaxParallel int           `envconfig:"EMBEDDINGS_MAX_PARALLEL" default:"4"`
}

// QdrantConfig holds vector store settings
type QdrantConfig struct {
	BaseURL    string        `envconfig:"QDRANT_BASE_URL" default:"http://localhost:6333"`
	Collection string        `envconfig:"QDRANT_COLLECTION" default:"testweave_docs"`
	APIKey     string        `envconfig:"QDRANT_API_KEY" default:""`
	Timeout    time.Duration `envconfig:"QDRANT_TIMEOUT" default:"15s"`
	TopK       int           `envconfig:"QDRANT_TOP_K" default:"5"`
	VectorSize int           `envconfig:"QDRANT_VECTOR_SIZE" default:"768"`
}

// OllamaConfig holds local generation backend settings
type OllamaConfig struct {
	BaseURL       string        `envconfig:"OLLAMA_BASE_URL" default:"http://localhost:11434"`
	Model         string        `envconfig:"OLLAMA_MODEL" default:"mistral"`
	Timeout       time.Duration `envconfig:"OLLAMA_TIMEOUT" default:"180s"`
	ContextWindow int           `envconfig:"OLLAMA_CONTEXT_WINDOW" default:"8192"`
	NumPredict    int           `envconfig:"OLLAMA_NUM_PREDICT" default:"2048"`
	MaxRetries    int           `envconfig:"OLLAMA_MAX_RETRIES" default:"3"`
}

// GroqConfig holds hosted generation backend settings
type GroqConfig struct {
	APIKey        string        `envconfig:"GROQ_API_KEY" default:""`
	BaseURL       string        `envconfig:"GROQ_BASE_URL" default:"https://api.groq.com/openai/v1"`
	Model         string        `envconfig:"GROQ_MODEL" default:"llama-3.3-70b-versatile"`
	Timeout       time.Duration `envconfig:"GROQ_TIMEOUT" default:"120s"`
	ContextWindow int           `envconfig:"GROQ_CONTEXT_WINDOW" default:"32768"`
	MaxTokens     int           `envconfig:"GROQ_MAX_TOKENS" default:"4096"`
	MaxRetries    int           `envconfig:"GROQ_MAX_RETRIES" default:"3"`
	RateLimitRPM  int           `envconfig:"GROQ_RATE_LIMIT_RPM" default:"30"`
}

// GenerationConfig holds pipeline behaviour settings
type GenerationConfig struct {
	Backend         string  `envconfig:"GENERATION_BACKEND" default:"ollama"` // ollama, groq
	MaxTestCases    int     `envconfig:"GENERATION_MAX_TEST_CASES" default:"10"`
	MinQualityScore float64 `envconfig:"GENERATION_MIN_QUALITY_SCORE" default:"0.5"`
	ReviewThreshold float64 `envconfig:"GENERATION_REVIEW_THRESHOLD" default:"0.65"`
	LogPath         string  `envconfig:"GENERATION_LOG_PATH" default:"logs/generation.jsonl"`
	ScriptStyle     string  `envconfig:"GENERATION_SCRIPT_STYLE" default:"pytest"` // pytest, unittest
}

// CorpusConfig holds ingestion and corpus statistics settings
type CorpusConfig struct {
	ChunkSize    int    `envconfig:"CORPUS_CHUNK_SIZE" default:"1000"`
	ChunkOverlap int    `envconfig:"CORPUS_CHUNK_OVERLAP" default:"200"`
	StatsPath    string `envconfig:"CORPUS_STATS_PATH" default:"data/corpus_stats.json"`
	DocsDir      string `envconfig:"CORPUS_DOCS_DIR" default:"docs"`
	SupportDir   string `envconfig:"CORPUS_SUPPORT_DIR" default:"supportDocs"`
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	Enabled         bool          `envconfig:"DB_ENABLED" default:"false"`
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"testweave"`
	Password        string        `envconfig:"DB_PASSWORD" default:""`
	Database        string        `envconfig:"DB_NAME" default:"testweave"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	ConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"1m"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	Host         string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port         int           `envconfig:"REDIS_PORT" default:"6379"`
	Password     string        `envconfig:"REDIS_PASSWORD" default:""`
	DB           int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"5"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Addr returns Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	Enabled        bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMin int  `envconfig:"RATE_LIMIT_REQUESTS_PER_MIN" default:"60"`
	BurstSize      int  `envconfig:"RATE_LIMIT_BURST_SIZE" default:"10"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []string

	switch c.Generation.Backend {
	case "ollama":
	case "groq":
		if c.Groq.APIKey == "" {
			errs = append(errs, "GROQ_API_KEY is required when GENERATION_BACKEND=groq")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown GENERATION_BACKEND %q (want ollama or groq)", c.Generation.Backend))
	}

	if c.Generation.ScriptStyle != "pytest" && c.Generation.ScriptStyle != "unittest" {
		errs = append(errs, fmt.Sprintf("unknown GENERATION_SCRIPT_STYLE %q (want pytest or unittest)", c.Generation.ScriptStyle))
	}

	if c.Corpus.ChunkOverlap >= c.Corpus.ChunkSize {
		errs = append(errs, "CORPUS_CHUNK_OVERLAP must be smaller than CORPUS_CHUNK_SIZE")
	}

	if c.Database.Enabled && c.Env != EnvDevelopment && c.Database.Password == "" {
		errs = append(errs, "DB_PASSWORD is required in non-development mode")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// GetLogLevel returns the appropriate zap log level
func (c *Config) GetLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}
