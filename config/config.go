package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Bucket     BucketConfig
	Redis      RedisConfig
	Operations OperationsConfig
	HTTP       HTTPConfig
	Log        LogConfig
}

type BucketConfig struct {
	Name        string        // Bucket name
	Backend     string        // Store backend: bolt, sqlite, redis or memory
	DBPath      string        // Directory holding file-backed stores
	DBFile      string        // Name of database file
	OpenTimeout time.Duration // How long to wait for the file lock on open
	PurgeEvery  time.Duration // Interval of the expired document sweep, zero disables
}

type RedisConfig struct {
	Addr     string // host:port of the redis server
	Password string
	DB       int
	Prefix   string // Key prefix, defaults to the bucket name
}

type OperationsConfig struct {
	Timeout          time.Duration // Per-operation deadline, zero disables
	BatchConcurrency int           // Concurrent elements in batch operations
}

type HTTPConfig struct {
	Port        string        // Port to listen on
	MaxBodySize int64         // Request body limit in bytes
	Timeout     time.Duration // Request timeout
	RateLimit   float64       // Requests per second, zero disables limiting
	RateBurst   int
	CORSOrigins []string // Origins allowed to call the API from a browser
}

type LogConfig struct {
	Level string // debug, info, warn or error
}

// Supported store backends
const (
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Defaults holds the default configuration values which can be overridden by environment variables
var Defaults = Config{
	Bucket: BucketConfig{
		Name:        getEnv("DB_BUCKET", "default"),
		Backend:     getEnv("DOCBUCKET_BACKEND", BackendBolt),
		DBPath:      getEnv("DB_PATH", "./"),
		DBFile:      getEnv("DB_FILE", "docbucket.db"),
		OpenTimeout: getEnvDuration("DB_OPEN_TIMEOUT", 5*time.Second),
		PurgeEvery:  getEnvDuration("PURGE_INTERVAL", time.Minute),
	},
	Redis: RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
		Prefix:   getEnv("REDIS_PREFIX", ""),
	},
	Operations: OperationsConfig{
		Timeout:          getEnvDuration("OP_TIMEOUT", 10*time.Second),
		BatchConcurrency: getEnvInt("BATCH_CONCURRENCY", 8),
	},
	HTTP: HTTPConfig{
		Port:        getEnv("HTTP_PORT", "8091"),
		MaxBodySize: int64(getEnvInt("HTTP_MAX_BODY", 20<<20)),
		Timeout:     getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		RateLimit:   getEnvFloat("HTTP_RATE_LIMIT", 100),
		RateBurst:   getEnvInt("HTTP_RATE_BURST", 200),
		CORSOrigins: getEnvList("CORS_ORIGINS"),
	},
	Log: LogConfig{
		Level: getEnv("LOG_LEVEL", "info"),
	},
}

// LoadDefault returns a validated copy of Defaults
func LoadDefault() (*Config, error) {
	cfg := Defaults
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the stores cannot work with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Bucket.Name) == "" {
		return fmt.Errorf("bucket name must not be empty")
	}
	switch c.Bucket.Backend {
	case BackendBolt, BackendSQLite:
		if c.Bucket.DBFile == "" {
			return fmt.Errorf("backend %s requires a database file", c.Bucket.Backend)
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("backend redis requires an address")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q (supported: bolt, sqlite, redis, memory)", c.Bucket.Backend)
	}
	if c.Operations.Timeout < 0 {
		return fmt.Errorf("operation timeout must not be negative")
	}
	if c.Operations.BatchConcurrency < 1 {
		return fmt.Errorf("batch concurrency must be at least 1")
	}
	if c.Bucket.PurgeEvery < 0 {
		return fmt.Errorf("purge interval must not be negative")
	}
	if c.HTTP.MaxBodySize <= 0 {
		return fmt.Errorf("max body size must be positive")
	}
	if c.HTTP.RateLimit < 0 || (c.HTTP.RateLimit > 0 && c.HTTP.RateBurst < 1) {
		return fmt.Errorf("rate limit needs a non-negative rate and a burst of at least 1")
	}
	return nil
}

// SlogLevel converts the configured level name to a slog.Level
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnv returns the value of the environment variable key if it exists, otherwise it returns the fallback value
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvFloat(key string, fallback float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvList splits a comma separated variable, dropping empty entries
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
