// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the CLI and server
type Config struct {
	App     AppConfig
	LLM     LLMConfig
	History HistoryConfig
	Lookup  LookupConfig
}

type AppConfig struct {
	LogLevel       string
	LogFormat      string
	HTTPAddr       string
	RequestTimeout time.Duration
	MaxSteps       int
	PromptsFile    string
}

type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
	Timeout        time.Duration
}

// History backends
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendPgvector = "pgvector"
)

type HistoryConfig struct {
	Backend       string
	SQLitePath    string
	PostgresDSN   string
	RedisURL      string
	Compression   string
	EncryptionKey []byte
	TTL           time.Duration
}

type LookupConfig struct {
	Backend     string
	PostgresDSN string
	Table       string
	Dimensions  int
	Limit       int
}

// Defaults match the Groq endpoint the travel planner was built against
const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.3-70b-versatile"
)

// Load reads .env files (missing files are ignored) and then the
// environment. Variables already set in the environment win over .env.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	key, err := decodeKey(os.Getenv("STATEGRAPH_HISTORY_ENCRYPTION_KEY"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			LogLevel:       getEnvWithDefault("STATEGRAPH_LOG_LEVEL", "info"),
			LogFormat:      getEnvWithDefault("STATEGRAPH_LOG_FORMAT", "text"),
			HTTPAddr:       getEnvWithDefault("STATEGRAPH_HTTP_ADDR", ":8080"),
			RequestTimeout: getEnvAsDuration("STATEGRAPH_REQUEST_TIMEOUT", 2*time.Minute),
			MaxSteps:       getEnvAsInt("STATEGRAPH_MAX_STEPS", 100),
			PromptsFile:    os.Getenv("STATEGRAPH_PROMPTS_FILE"),
		},
		LLM: LLMConfig{
			APIKey:         firstEnv("STATEGRAPH_LLM_API_KEY", "GROQ_API_KEY", "OPENAI_API_KEY"),
			BaseURL:        getEnvWithDefault("STATEGRAPH_LLM_BASE_URL", DefaultBaseURL),
			Model:          getEnvWithDefault("STATEGRAPH_LLM_MODEL", DefaultModel),
			EmbeddingModel: getEnvWithDefault("STATEGRAPH_EMBEDDING_MODEL", "text-embedding-3-small"),
			Temperature:    float32(getEnvAsFloat("STATEGRAPH_LLM_TEMPERATURE", 0)),
			MaxTokens:      getEnvAsInt("STATEGRAPH_LLM_MAX_TOKENS", 0),
			Timeout:        getEnvAsDuration("STATEGRAPH_LLM_TIMEOUT", 60*time.Second),
		},
		History: HistoryConfig{
			Backend:       strings.ToLower(getEnvWithDefault("STATEGRAPH_HISTORY_BACKEND", BackendMemory)),
			SQLitePath:    getEnvWithDefault("STATEGRAPH_HISTORY_SQLITE_PATH", "stategraph.db"),
			PostgresDSN:   os.Getenv("STATEGRAPH_HISTORY_POSTGRES_DSN"),
			RedisURL:      getEnvWithDefault("STATEGRAPH_HISTORY_REDIS_URL", "redis://localhost:6379/0"),
			Compression:   getEnvWithDefault("STATEGRAPH_HISTORY_COMPRESSION", "zstd"),
			EncryptionKey: key,
			TTL:           getEnvAsDuration("STATEGRAPH_HISTORY_TTL", 0),
		},
		Lookup: LookupConfig{
			Backend:     strings.ToLower(getEnvWithDefault("STATEGRAPH_LOOKUP_BACKEND", BackendNone)),
			PostgresDSN: os.Getenv("STATEGRAPH_LOOKUP_POSTGRES_DSN"),
			Table:       getEnvWithDefault("STATEGRAPH_LOOKUP_TABLE", "travel_notes"),
			Dimensions:  getEnvAsInt("STATEGRAPH_LOOKUP_DIMENSIONS", 1536),
			Limit:       getEnvAsInt("STATEGRAPH_LOOKUP_LIMIT", 3),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section and reports all problems at once. The LLM
// key is not required here; see LLMConfig.Validate.
func (c *Config) Validate() error {
	var errs []error
	if c.App.MaxSteps <= 0 {
		errs = append(errs, errors.New("STATEGRAPH_MAX_STEPS must be positive"))
	}
	if c.App.RequestTimeout < 0 {
		errs = append(errs, errors.New("STATEGRAPH_REQUEST_TIMEOUT must not be negative"))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, errors.New("STATEGRAPH_LLM_TEMPERATURE must be between 0 and 2"))
	}

	switch c.History.Backend {
	case BackendNone, BackendMemory, BackendRedis:
	case BackendSQLite:
		if c.History.SQLitePath == "" {
			errs = append(errs, errors.New("STATEGRAPH_HISTORY_SQLITE_PATH is required for the sqlite backend"))
		}
	case BackendPostgres:
		if c.History.PostgresDSN == "" {
			errs = append(errs, errors.New("STATEGRAPH_HISTORY_POSTGRES_DSN is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown history backend %q", c.History.Backend))
	}

	switch c.Lookup.Backend {
	case BackendNone:
	case BackendPgvector:
		if c.Lookup.PostgresDSN == "" {
			errs = append(errs, errors.New("STATEGRAPH_LOOKUP_POSTGRES_DSN is required for the pgvector backend"))
		}
		if c.Lookup.Dimensions <= 0 {
			errs = append(errs, errors.New("STATEGRAPH_LOOKUP_DIMENSIONS must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown lookup backend %q", c.Lookup.Backend))
	}
	return errors.Join(errs...)
}

// Validate checks what is needed to call the model
func (c LLMConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("an API key is required: set STATEGRAPH_LLM_API_KEY or GROQ_API_KEY")
	}
	if c.Model == "" {
		return errors.New("STATEGRAPH_LLM_MODEL is required")
	}
	return nil
}

// decodeKey accepts a hex-encoded AES key; empty disables encryption
func decodeKey(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("STATEGRAPH_HISTORY_ENCRYPTION_KEY must be hex: %w", err)
	}
	return key, nil
}

// Helper functions for environment variable parsing

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getEnvAsInt(key string, defaultValue int) int {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
