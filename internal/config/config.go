// internal/config/config.go

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	NATS        NATSConfig
	Snapshot    SnapshotConfig
	Providers   ProvidersConfig
	Pipeline    PipelineConfig
	Logging     LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	MaxConns int
	SSLMode  string
}

// DSN returns the Postgres connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// NATSConfig holds NATS configuration. An empty URL disables the event mirror.
type NATSConfig struct {
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
	EventsTopic    string
}

// SnapshotConfig selects where analysis snapshots are kept
type SnapshotConfig struct {
	Backend string
	Key     string
	Table   string
	TTL     time.Duration
}

// ProvidersConfig holds external collaborator settings
type ProvidersConfig struct {
	Retrieval         string
	RetrievalURL      string
	RetrievalAPIKey   string
	RedditURL         string
	RedditLimit       int
	XHost             string
	XBearerToken      string
	XMaxResults       int
	ClassifierURL     string
	ReasonerURL       string
	MineURL           string
	ScoreURL          string
	PlaybookURL       string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	SourcesFile       string
}

// PipelineConfig holds run settings
type PipelineConfig struct {
	Variant        string
	EventBuffer    int
	TitleChars     int
	BodyChars      int
	TotalChars     int
	DedupThreshold float64
	BlockedDomains []string
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level       string
	Development bool
}

// Snapshot backends
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Retrieval provider kinds
const (
	RetrievalHTTP   = "http"
	RetrievalReddit = "reddit"
	RetrievalX      = "x"
	RetrievalRSS    = "rss"
	RetrievalMulti  = "multi"
)

// Load reads an optional .env file and then the environment
func Load() (Config, error) {
	if err := godotenv.Load(getEnv("ENV_FILE", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("error loading env file: %w", err)
	}

	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "pulse"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", ""),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
			EventsTopic:    getEnv("NATS_EVENTS_TOPIC", "pulse.runs"),
		},
		Snapshot: SnapshotConfig{
			Backend: strings.ToLower(getEnv("SNAPSHOT_BACKEND", BackendMemory)),
			Key:     getEnv("SNAPSHOT_KEY", "default"),
			Table:   getEnv("SNAPSHOT_TABLE", "analysis_snapshots"),
			TTL:     getEnvAsDuration("SNAPSHOT_TTL", 0),
		},
		Providers: ProvidersConfig{
			Retrieval:         strings.ToLower(getEnv("RETRIEVAL_PROVIDER", RetrievalHTTP)),
			RetrievalURL:      getEnv("RETRIEVAL_URL", "http://localhost:9000/search"),
			RetrievalAPIKey:   getEnv("RETRIEVAL_API_KEY", ""),
			RedditURL:         getEnv("REDDIT_URL", "https://www.reddit.com"),
			RedditLimit:       getEnvAsInt("REDDIT_LIMIT", 25),
			XHost:             getEnv("X_API_HOST", "https://api.twitter.com"),
			XBearerToken:      getEnv("X_BEARER_TOKEN", getEnv("TWITTER_BEARER_TOKEN", "")),
			XMaxResults:       getEnvAsInt("X_MAX_RESULTS", 25),
			ClassifierURL:     getEnv("CLASSIFIER_URL", "http://localhost:9000/classify"),
			ReasonerURL:       getEnv("REASONER_URL", "http://localhost:9000/reason"),
			MineURL:           getEnv("REASONER_MINE_URL", ""),
			ScoreURL:          getEnv("REASONER_SCORE_URL", ""),
			PlaybookURL:       getEnv("REASONER_PLAYBOOK_URL", ""),
			APIKey:            getEnv("PROVIDER_API_KEY", ""),
			Timeout:           getEnvAsDuration("PROVIDER_TIMEOUT", 60*time.Second),
			RequestsPerSecond: getEnvAsFloat("PROVIDER_REQUESTS_PER_SECOND", 2),
			Burst:             getEnvAsInt("PROVIDER_BURST", 2),
			SourcesFile:       getEnv("SOURCES_FILE", ""),
		},
		Pipeline: PipelineConfig{
			Variant:        strings.ToLower(getEnv("PIPELINE_VARIANT", "sentiment")),
			EventBuffer:    getEnvAsInt("PIPELINE_EVENT_BUFFER", 16),
			TitleChars:     getEnvAsInt("PIPELINE_TITLE_CHARS", 160),
			BodyChars:      getEnvAsInt("PIPELINE_BODY_CHARS", 800),
			TotalChars:     getEnvAsInt("PIPELINE_TOTAL_CHARS", 12000),
			DedupThreshold: getEnvAsFloat("PIPELINE_DEDUP_THRESHOLD", 0.9),
			BlockedDomains: getEnvAsSlice("PIPELINE_BLOCKED_DOMAINS", nil),
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	return config, validate(config)
}

// validate checks if config is valid
func validate(config Config) error {
	switch config.Snapshot.Backend {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("unknown snapshot backend %q", config.Snapshot.Backend)
	}

	switch config.Pipeline.Variant {
	case "sentiment", "opportunity":
	default:
		return fmt.Errorf("unknown pipeline variant %q", config.Pipeline.Variant)
	}

	switch config.Providers.Retrieval {
	case RetrievalHTTP, RetrievalReddit, RetrievalRSS, RetrievalMulti:
	case RetrievalX:
		if config.Providers.XBearerToken == "" {
			return fmt.Errorf("X_BEARER_TOKEN is required for the x retrieval provider")
		}
	default:
		return fmt.Errorf("unknown retrieval provider %q", config.Providers.Retrieval)
	}

	p := config.Pipeline
	if p.TitleChars <= 0 || p.BodyChars <= 0 || p.TotalChars <= 0 {
		return fmt.Errorf("snippet budget caps must be positive")
	}
	if p.EventBuffer <= 0 {
		return fmt.Errorf("event buffer must be positive")
	}
	if p.DedupThreshold <= 0 || p.DedupThreshold > 1 {
		return fmt.Errorf("dedup threshold must be in (0, 1], got %v", p.DedupThreshold)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
