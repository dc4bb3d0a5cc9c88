// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creastat/retrieval"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Environment string
	Vector      VectorConfig
	Embedding   EmbeddingConfig
	Cache       CacheConfig
	Catalog     CatalogConfig
	Logging     LoggingConfig
	CallTimeout time.Duration `validate:"gte=0"`
}

// VectorConfig selects and configures the vector index
type VectorConfig struct {
	Store      string `validate:"oneof=memory qdrant"`
	Namespace  string `validate:"required"`
	Dimension  int    `validate:"gt=0"`
	QdrantURL  string `validate:"required_if=Store qdrant"`
	QdrantKey  string
	Collection string `validate:"required_if=Store qdrant"`
}

// EmbeddingConfig holds embedding backend configuration
type EmbeddingConfig struct {
	APIKey     string
	BaseURL    string        `validate:"required,url"`
	Model      string        `validate:"required"`
	MaxTokens  int           `validate:"gt=0"`
	BatchSize  int           `validate:"gt=0"`
	BatchDelay time.Duration `validate:"gte=0"`
	Timeout    time.Duration `validate:"gte=0"`
}

// CacheConfig holds embedding cache configuration
type CacheConfig struct {
	Store    string `validate:"oneof=none memory redis"`
	RedisURL string `validate:"required_if=Store redis"`
	TTL      time.Duration
}

// CatalogConfig holds Supabase catalog configuration
type CatalogConfig struct {
	URL      string
	APIKey   string
	CacheTTL time.Duration
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string `validate:"required"`
	Format string `validate:"oneof=json console text"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Vector: VectorConfig{
			Store:      strings.ToLower(getEnv("VECTOR_STORE", "memory")),
			Namespace:  getEnv("VECTOR_NAMESPACE", "production"),
			Dimension:  getEnvAsInt("VECTOR_DIMENSION", 1536),
			QdrantURL:  getEnv("QDRANT_URL", ""),
			QdrantKey:  getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "spool-textbook-embeddings"),
		},
		Embedding: EmbeddingConfig{
			APIKey:     getEnv("EMBEDDING_API_KEY", ""),
			BaseURL:    getEnv("EMBEDDING_BASE_URL", "https://api.openai.com/v1"),
			Model:      getEnv("EMBEDDING_MODEL", "text-embedding-ada-002"),
			MaxTokens:  getEnvAsInt("EMBEDDING_MAX_TOKENS", 8000),
			BatchSize:  getEnvAsInt("EMBEDDING_BATCH_SIZE", 20),
			BatchDelay: getEnvAsDuration("EMBEDDING_BATCH_DELAY", 100*time.Millisecond),
			Timeout:    getEnvAsDuration("EMBEDDING_TIMEOUT", 30*time.Second),
		},
		Cache: CacheConfig{
			Store:    strings.ToLower(getEnv("CACHE_STORE", "none")),
			RedisURL: getEnv("REDIS_URL", ""),
			TTL:      getEnvAsDuration("CACHE_TTL", 24*time.Hour),
		},
		Catalog: CatalogConfig{
			URL:      getEnv("SUPABASE_URL", ""),
			APIKey:   getEnv("SUPABASE_API_KEY", ""),
			CacheTTL: getEnvAsDuration("CATALOG_CACHE_TTL", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		CallTimeout: getEnvAsDuration("CALL_TIMEOUT", 10*time.Second),
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the struct constraints plus the environment-dependent rules
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q", retrieval.ErrInvalidConfig, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", retrieval.ErrInvalidConfig, err)
	}

	if c.IsProduction() && c.Embedding.APIKey == "" {
		return fmt.Errorf("%w: embedding API key is required in production", retrieval.ErrInvalidConfig)
	}

	return nil
}

// HasCatalog reports whether the Supabase catalog is configured
func (c *Config) HasCatalog() bool {
	return c.Catalog.URL != "" && c.Catalog.APIKey != ""
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
