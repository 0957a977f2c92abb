package config

import (
	"context"
	"time"
)

// Config represents the complete configuration for the docqa service.
type Config struct {
	Server     ServerConfig     `koanf:"server"     validate:"required"`
	Fetch      FetchConfig      `koanf:"fetch"      validate:"required"`
	Chunking   ChunkingConfig   `koanf:"chunking"   validate:"required"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"  validate:"required"`
	Embedder   EmbedderConfig   `koanf:"embedder"   validate:"required"`
	LLM        LLMConfig        `koanf:"llm"        validate:"required"`
	RateLimit  RateLimitConfig  `koanf:"ratelimit"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
	Runtime    RuntimeConfig    `koanf:"runtime"    validate:"required"`
	CLI        CLIConfig        `koanf:"cli"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"             validate:"required"        env:"SERVER_HOST"`
	Port            int           `koanf:"port"             validate:"min=1,max=65535" env:"SERVER_PORT"`
	CORSEnabled     bool          `koanf:"cors_enabled"                                env:"SERVER_CORS_ENABLED"`
	Timeout         time.Duration `koanf:"timeout"          validate:"min=0"           env:"SERVER_TIMEOUT"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=0"           env:"SERVER_SHUTDOWN_TIMEOUT"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"   validate:"min=1"           env:"SERVER_MAX_BODY_BYTES"`
	Auth            AuthConfig    `koanf:"auth"`
}

// AuthConfig contains bearer authentication configuration.
type AuthConfig struct {
	Enabled bool            `koanf:"enabled" env:"SERVER_AUTH_ENABLED"`
	Token   SensitiveString `koanf:"token"   env:"SERVER_AUTH_TOKEN"   sensitive:"true"`
}

// FetchConfig controls how source documents are downloaded.
type FetchConfig struct {
	Timeout      time.Duration `koanf:"timeout"       validate:"min=0"                 env:"FETCH_TIMEOUT"`
	MaxBytes     int64         `koanf:"max_bytes"     validate:"min=1"                 env:"FETCH_MAX_BYTES"`
	MaxRedirects int           `koanf:"max_redirects" validate:"min=0"                 env:"FETCH_MAX_REDIRECTS"`
	Retries      int           `koanf:"retries"       validate:"min=0,max=10"          env:"FETCH_RETRIES"`
	DefaultType  string        `koanf:"default_type"  validate:"oneof=pdf docx text"   env:"FETCH_DEFAULT_TYPE"`
	UserAgent    string        `koanf:"user_agent"                                     env:"FETCH_USER_AGENT"`
}

// ChunkingConfig contains the text splitting window.
type ChunkingConfig struct {
	Size    int `koanf:"size"    validate:"min=1" env:"CHUNKING_SIZE"`
	Overlap int `koanf:"overlap" validate:"min=0" env:"CHUNKING_OVERLAP"`
}

// RetrievalConfig contains similarity search defaults.
type RetrievalConfig struct {
	TopK      int     `koanf:"top_k"      validate:"min=1"         env:"RETRIEVAL_TOP_K"`
	Threshold float64 `koanf:"threshold"  validate:"gte=-1,lte=1"  env:"RETRIEVAL_THRESHOLD"`
	MaxChunks int     `koanf:"max_chunks" validate:"min=1"         env:"RETRIEVAL_MAX_CHUNKS"`
	// MaxTokens caps the context per question; 0 disables the cap.
	MaxTokens int `koanf:"max_tokens" validate:"min=0" env:"RETRIEVAL_MAX_TOKENS"`
}

// EmbedderConfig selects the embedding provider.
type EmbedderConfig struct {
	Provider      string          `koanf:"provider"        validate:"oneof=openai googleai ollama" env:"EMBEDDER_PROVIDER"`
	Model         string          `koanf:"model"           validate:"required"                     env:"EMBEDDER_MODEL"`
	APIKey        SensitiveString `koanf:"api_key"                                                 env:"EMBEDDER_API_KEY"        sensitive:"true"`
	BaseURL       string          `koanf:"base_url"                                                env:"EMBEDDER_BASE_URL"`
	Dimension     int             `koanf:"dimension"       validate:"min=1"                        env:"EMBEDDER_DIMENSION"`
	BatchSize     int             `koanf:"batch_size"      validate:"min=1"                        env:"EMBEDDER_BATCH_SIZE"`
	CacheSize     int             `koanf:"cache_size"      validate:"min=0"                        env:"EMBEDDER_CACHE_SIZE"`
	StripNewLines bool            `koanf:"strip_newlines"                                          env:"EMBEDDER_STRIP_NEWLINES"`
}

// LLMConfig selects the answer generation model.
type LLMConfig struct {
	Provider       string          `koanf:"provider"        validate:"oneof=google openai ollama mock" env:"LLM_PROVIDER"`
	Model          string          `koanf:"model"           validate:"required"                        env:"LLM_MODEL"`
	APIKey         SensitiveString `koanf:"api_key"                                                    env:"GEMINI_API_KEY"       sensitive:"true"`
	BaseURL        string          `koanf:"base_url"                                                   env:"LLM_BASE_URL"`
	Temperature    float64         `koanf:"temperature"     validate:"gte=0,lte=2"                     env:"LLM_TEMPERATURE"`
	MaxTokens      int             `koanf:"max_tokens"      validate:"min=0"                           env:"LLM_MAX_TOKENS"`
	Timeout        time.Duration   `koanf:"timeout"         validate:"min=0"                           env:"LLM_TIMEOUT"`
	RetryAttempts  int             `koanf:"retry_attempts"  validate:"min=0,max=10"                    env:"LLM_RETRY_ATTEMPTS"`
	RetryBackoff   time.Duration   `koanf:"retry_backoff"   validate:"min=0"                           env:"LLM_RETRY_BACKOFF"`
	MaxConcurrency int             `koanf:"max_concurrency" validate:"min=0"                           env:"LLM_MAX_CONCURRENCY"`
}

// RateLimitConfig contains rate limiting configuration for the API routes.
type RateLimitConfig struct {
	Enabled bool          `koanf:"enabled" env:"RATELIMIT_ENABLED"`
	Limit   int64         `koanf:"limit"   env:"RATELIMIT_LIMIT"   validate:"min=0"`
	Period  time.Duration `koanf:"period"  env:"RATELIMIT_PERIOD"  validate:"min=0"`
}

// MonitoringConfig controls the Prometheus endpoint.
type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled" env:"MONITORING_ENABLED"`
	Path    string `koanf:"path"    env:"MONITORING_PATH"`
}

// RuntimeConfig contains runtime behavior configuration.
type RuntimeConfig struct {
	Environment string `koanf:"environment" validate:"oneof=development staging production" env:"RUNTIME_ENVIRONMENT"`
	LogLevel    string `koanf:"log_level"   validate:"oneof=debug info warn error disabled" env:"RUNTIME_LOG_LEVEL"`
	LogJSON     bool   `koanf:"log_json"                                                    env:"RUNTIME_LOG_JSON"`
}

// CLIConfig contains settings used by the client commands.
type CLIConfig struct {
	APIKey  SensitiveString `koanf:"api_key"  env:"DOCQA_API_KEY"  sensitive:"true"`
	BaseURL string          `koanf:"base_url" env:"DOCQA_BASE_URL"`
	Timeout time.Duration   `koanf:"timeout"  env:"DOCQA_TIMEOUT"`
}

// Service defines the configuration management service interface.
type Service interface {
	// Load loads configuration from the specified sources with precedence order.
	Load(ctx context.Context, sources ...Source) (*Config, error)
	// Validate checks if the configuration meets all validation requirements.
	Validate(config *Config) error
	// GetSource returns the source type for a specific configuration key.
	GetSource(key string) SourceType
}

// Source defines the interface for configuration sources.
type Source interface {
	Load() (map[string]any, error)
	Type() SourceType
}

// SourceType identifies the type of configuration source.
type SourceType string

const (
	SourceCLI     SourceType = "cli"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceDefault SourceType = "default"
)

// Metadata contains metadata about configuration sources.
type Metadata struct {
	Sources  map[string]SourceType `json:"sources"`
	LoadedAt time.Time             `json:"loaded_at"`
}

// Load loads defaults and environment variables using a fresh service.
func Load(ctx context.Context) (*Config, error) {
	return NewService().Load(ctx)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			CORSEnabled:     true,
			Timeout:         5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    1 << 20,
			Auth: AuthConfig{
				Enabled: true,
			},
		},
		Fetch: FetchConfig{
			Timeout:      30 * time.Second,
			MaxBytes:     50 << 20,
			MaxRedirects: 5,
			Retries:      2,
			DefaultType:  "pdf",
			UserAgent:    "docqa/1.0",
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Retrieval: RetrievalConfig{
			TopK:      5,
			Threshold: 0.5,
			MaxChunks: 3,
		},
		Embedder: EmbedderConfig{
			Provider:      "googleai",
			Model:         "text-embedding-004",
			Dimension:     768,
			BatchSize:     32,
			CacheSize:     4096,
			StripNewLines: true,
		},
		LLM: LLMConfig{
			Provider:       "google",
			Model:          "gemini-2.0-flash",
			Temperature:    0.1,
			Timeout:        60 * time.Second,
			RetryAttempts:  2,
			RetryBackoff:   500 * time.Millisecond,
			MaxConcurrency: 0,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Limit:   60,
			Period:  time.Minute,
		},
		Monitoring: MonitoringConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Runtime: RuntimeConfig{
			Environment: "development",
			LogLevel:    "info",
		},
		CLI: CLIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 5 * time.Minute,
		},
	}
}
