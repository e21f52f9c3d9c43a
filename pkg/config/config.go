// Package config loads and validates the environment-variable settings
// that wire the relational/vector/graph backends, the LLM providers, and
// the job manager. Grounded in tarsy's database.LoadConfigFromEnv/Validate
// pair: one Load function building defaults from os.Getenv, one Validate
// method checking required combinations.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// RelationalBackend selects between the embedded (SQLite) and networked
// (Postgres) relational adapters.
type RelationalBackend string

const (
	RelationalBackendEmbedded  RelationalBackend = "embedded"
	RelationalBackendNetworked RelationalBackend = "networked"
)

// NetworkedDB holds the DB_* settings consulted only when
// RelationalBackend == networked.
type NetworkedDB struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	MaxConns        int
	IdleTimeout     time.Duration
	ConnectTimeout  time.Duration
}

// Config is the fully resolved, validated set of settings for one run.
type Config struct {
	RelationalBackend RelationalBackend
	EmbeddedDBPath    string
	NetworkedDB       NetworkedDB

	VectorURL        string
	VectorCollection string

	GraphURL      string
	GraphUser     string
	GraphPassword string
	GraphDB       string

	ChatModel  string
	ChatAPIKey string

	EmbeddingModel string
	OpenAIAPIKey   string

	LogPath  string
	LogLevel slog.Level

	ShortMemoryCapacity int
	JobQueueCapacity    int

	ChatTimeout  time.Duration
	EmbedTimeout time.Duration
	StoreTimeout time.Duration

	DirectivePath string

	HTTPAddr string
}

// Load reads an optional .env file from configDir (if present, exactly
// like tarsy's cmd/tarsy/main.go startup), then resolves every setting
// from the process environment, applying defaults, and validates the
// result.
func Load(configDir string) (*Config, error) {
	if configDir != "" {
		envFile := filepath.Join(configDir, ".env")
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}

	logLevel, err := parseLogLevel(getEnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, NewValidationError("LOG_LEVEL", err)
	}

	shortMemCap, err := strconv.Atoi(getEnvOrDefault("SHORT_MEMORY_CAPACITY", "10"))
	if err != nil {
		return nil, NewValidationError("SHORT_MEMORY_CAPACITY", err)
	}

	jobQueueCap, err := strconv.Atoi(getEnvOrDefault("JOB_QUEUE_CAPACITY", "100"))
	if err != nil {
		return nil, NewValidationError("JOB_QUEUE_CAPACITY", err)
	}

	chatTimeout, err := parseMillis("CHAT_TIMEOUT_MS", 30000)
	if err != nil {
		return nil, err
	}
	embedTimeout, err := parseMillis("EMBED_TIMEOUT_MS", 10000)
	if err != nil {
		return nil, err
	}
	storeTimeout, err := parseMillis("STORE_TIMEOUT_MS", 5000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RelationalBackend: RelationalBackend(getEnvOrDefault("RELATIONAL_BACKEND", string(RelationalBackendEmbedded))),
		EmbeddedDBPath:    getEnvOrDefault("EMBEDDED_DB_PATH", "./memory.db"),

		VectorURL:        os.Getenv("VECTOR_URL"),
		VectorCollection: getEnvOrDefault("VECTOR_COLLECTION", "memory-main"),

		GraphURL:      os.Getenv("GRAPH_URL"),
		GraphUser:     os.Getenv("GRAPH_USER"),
		GraphPassword: os.Getenv("GRAPH_PASSWORD"),
		GraphDB:       os.Getenv("GRAPH_DB"),

		ChatModel:  os.Getenv("CHAT_MODEL"),
		ChatAPIKey: os.Getenv("CHAT_API_KEY"),

		EmbeddingModel: os.Getenv("EMBEDDING_MODEL"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),

		LogPath:  getEnvOrDefault("LOG_PATH", "./memory.log"),
		LogLevel: logLevel,

		ShortMemoryCapacity: shortMemCap,
		JobQueueCapacity:    jobQueueCap,

		ChatTimeout:  chatTimeout,
		EmbedTimeout: embedTimeout,
		StoreTimeout: storeTimeout,

		DirectivePath: getEnvOrDefault("DIRECTIVE_PATH", "./directive.txt"),

		HTTPAddr: getEnvOrDefault("HTTP_ADDR", ":8085"),
	}

	if cfg.RelationalBackend == RelationalBackendNetworked {
		db, err := loadNetworkedDB()
		if err != nil {
			return nil, err
		}
		cfg.NetworkedDB = db
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadNetworkedDB() (NetworkedDB, error) {
	port, err := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	if err != nil {
		return NetworkedDB{}, NewValidationError("DB_PORT", err)
	}
	maxConns, err := strconv.Atoi(getEnvOrDefault("DB_MAX_CONN", "20"))
	if err != nil {
		return NetworkedDB{}, NewValidationError("DB_MAX_CONN", err)
	}
	idleMS, err := strconv.Atoi(getEnvOrDefault("DB_IDLE_MS", "30000"))
	if err != nil {
		return NetworkedDB{}, NewValidationError("DB_IDLE_MS", err)
	}
	connTimeoutMS, err := strconv.Atoi(getEnvOrDefault("DB_CONN_TIMEOUT_MS", "2000"))
	if err != nil {
		return NetworkedDB{}, NewValidationError("DB_CONN_TIMEOUT_MS", err)
	}

	return NetworkedDB{
		Host:           getEnvOrDefault("DB_HOST", "localhost"),
		Port:           port,
		Name:           os.Getenv("DB_NAME"),
		User:           os.Getenv("DB_USER"),
		Password:       os.Getenv("DB_PASSWORD"),
		MaxConns:       maxConns,
		IdleTimeout:    time.Duration(idleMS) * time.Millisecond,
		ConnectTimeout: time.Duration(connTimeoutMS) * time.Millisecond,
	}, nil
}

// Validate checks required combinations that can't be expressed as a
// single default.
func (c *Config) Validate() error {
	if c.RelationalBackend != RelationalBackendEmbedded && c.RelationalBackend != RelationalBackendNetworked {
		return NewValidationError("RELATIONAL_BACKEND", fmt.Errorf("%w: %q", ErrInvalidValue, c.RelationalBackend))
	}

	if c.RelationalBackend == RelationalBackendNetworked {
		if c.NetworkedDB.Name == "" {
			return NewValidationError("DB_NAME", ErrMissingRequiredField)
		}
		if c.NetworkedDB.User == "" {
			return NewValidationError("DB_USER", ErrMissingRequiredField)
		}
		if c.NetworkedDB.MaxConns < 1 {
			return NewValidationError("DB_MAX_CONN", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
		}
	}

	if isRemoteChatModel(c.ChatModel) && c.ChatAPIKey == "" {
		return NewValidationError("CHAT_API_KEY", ErrMissingRequiredField)
	}

	if strings.EqualFold(c.EmbeddingModel, "openai") && c.OpenAIAPIKey == "" {
		return NewValidationError("OPENAI_API_KEY", ErrMissingRequiredField)
	}

	if c.ShortMemoryCapacity < 1 {
		return NewValidationError("SHORT_MEMORY_CAPACITY", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if c.JobQueueCapacity < 1 {
		return NewValidationError("JOB_QUEUE_CAPACITY", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}

	return nil
}

// isRemoteChatModel reports whether model names a hosted provider rather
// than the local fallback, mirroring the local/remote split pkg/llm's
// Registry resolves against.
func isRemoteChatModel(model string) bool {
	return strings.HasPrefix(model, "claude") || strings.HasPrefix(model, "gpt")
}

func parseMillis(envVar string, def int) (time.Duration, error) {
	ms, err := strconv.Atoi(getEnvOrDefault(envVar, strconv.Itoa(def)))
	if err != nil {
		return 0, NewValidationError(envVar, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
