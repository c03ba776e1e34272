package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingAuthKey   = errors.New("AUTH_API_KEY is required")
	ErrMissingSearchKey = errors.New("SERPER_API_KEY or TAVILY_API_KEY is required")
	ErrInvalidEmbedder  = errors.New("invalid embedding provider")
)

const (
	EmbeddingOpenAI = "openai"
	EmbeddingMock   = "mock"
)

type Config struct {
	HTTP      HTTPConfig
	Serper    SearchProviderConfig
	Tavily    SearchProviderConfig
	Search    SearchConfig
	Embedding EmbeddingConfig
	Fetch     FetchConfig
	Detail    DetailConfig
	Log       LogConfig
	RateLimit RateLimitConfig
}

type HTTPConfig struct {
	Addr           string
	AuthAPIKey     string
	RequestTimeout time.Duration
}

type SearchProviderConfig struct {
	APIKey  string
	BaseURL string
}

type SearchConfig struct {
	Timeout time.Duration
}

type EmbeddingConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
}

type FetchConfig struct {
	Concurrency  int
	Timeout      time.Duration
	BatchTimeout time.Duration
	MaxBodyBytes int64
	UserAgent    string
}

type DetailConfig struct {
	// LegacyTopK - выбирать topK+1 ссылок, как делал старый сервис
	LegacyTopK bool
}

type LogConfig struct {
	Level  string
	Format string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

// Load reads the server configuration from the environment.
func Load() (*Config, error) {
	cfg := load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadCLI is Load for the one-shot search command: AUTH_API_KEY is not needed.
func LoadCLI() (*Config, error) {
	cfg := load()
	if err := cfg.validateProviders(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:           getEnvOrDefault("HTTP_ADDR", ":8080"),
			AuthAPIKey:     os.Getenv("AUTH_API_KEY"),
			RequestTimeout: time.Duration(getEnvIntOrDefault("REQUEST_TIMEOUT_SEC", 60)) * time.Second,
		},
		Serper: SearchProviderConfig{
			APIKey:  os.Getenv("SERPER_API_KEY"),
			BaseURL: getEnvOrDefault("SERPER_BASE_URL", "https://google.serper.dev"),
		},
		Tavily: SearchProviderConfig{
			APIKey:  os.Getenv("TAVILY_API_KEY"),
			BaseURL: getEnvOrDefault("TAVILY_BASE_URL", "https://api.tavily.com"),
		},
		Search: SearchConfig{
			Timeout: time.Duration(getEnvIntOrDefault("SEARCH_TIMEOUT_SEC", 30)) * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider: strings.ToLower(getEnvOrDefault("EMBEDDING_PROVIDER", EmbeddingOpenAI)),
			BaseURL:  os.Getenv("EMBEDDING_BASE_URL"),
			APIKey:   os.Getenv("EMBEDDING_API_KEY"),
			Model:    getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Fetch: FetchConfig{
			Concurrency:  getEnvIntOrDefault("FETCH_CONCURRENCY", 8),
			Timeout:      time.Duration(getEnvIntOrDefault("FETCH_TIMEOUT_SEC", 10)) * time.Second,
			BatchTimeout: time.Duration(getEnvIntOrDefault("FETCH_BATCH_TIMEOUT_SEC", 20)) * time.Second,
			MaxBodyBytes: int64(getEnvIntOrDefault("FETCH_MAX_BODY_BYTES", 5<<20)),
			UserAgent:    os.Getenv("FETCH_USER_AGENT"),
		},
		Detail: DetailConfig{
			LegacyTopK: getEnvBoolOrDefault("DETAIL_LEGACY_TOPK", false),
		},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvIntOrDefault("RATE_LIMIT_PER_MINUTE", 60),
		},
	}
}

func (c *Config) Validate() error {
	if c.HTTP.AuthAPIKey == "" {
		return ErrMissingAuthKey
	}
	return c.validateProviders()
}

func (c *Config) validateProviders() error {
	if c.Serper.APIKey == "" && c.Tavily.APIKey == "" {
		return ErrMissingSearchKey
	}
	switch c.Embedding.Provider {
	case EmbeddingOpenAI, EmbeddingMock:
	default:
		return ErrInvalidEmbedder
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
