package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type (
	// Config holds configuration settings for the engine and its server
	Config struct {
		// API Server
		APIHost  string
		APIPort  int
		LogLevel string

		// Stores & Archiving
		Archive ArchiveConfig
		KVStore RedisConfig

		// Engine
		StepTimeout     int64
		RunCacheSize    int
		ShutdownTimeout time.Duration
		WebhookTimeout  time.Duration
	}

	// RedisConfig locates a Redis server. An empty Addr disables the
	// component that uses it
	RedisConfig struct {
		Addr     string
		Password string
		Prefix   string
		DB       int
	}

	// ArchiveConfig controls where finished runs are copied
	ArchiveConfig struct {
		Redis     RedisConfig
		BucketURL string
		QueueSize int
	}
)

const (
	DefaultStepTimeout     = 30_000
	DefaultShutdownTimeout = 10 * time.Second
	DefaultWebhookTimeout  = 30 * time.Second

	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535
	DefaultRedisDB = 0

	DefaultArchivePrefix    = "stepflow:run:"
	DefaultKVPrefix         = "stepflow:kv:"
	DefaultRunCacheSize     = 4096
	DefaultArchiveQueueSize = 64

	MaxRunCacheSize     = 1_000_000
	MaxArchiveQueueSize = 100_000
	MaxStepTimeout      = 365 * 24 * 60 * 60 * 1000 // 1 year in ms
	MaxShutdownTimeout  = 60 * 60 * 1000            // 1 hour in ms
	MaxWebhookTimeout   = 60 * 60 * 1000
)

var (
	ErrInvalidAPIPort         = errors.New("invalid API port")
	ErrInvalidStepTimeout     = errors.New("step timeout must be positive")
	ErrInvalidRunCacheSize    = errors.New("run cache size must be positive")
	ErrInvalidShutdownTimeout = errors.New(
		"shutdown timeout must be positive",
	)
	ErrInvalidWebhookTimeout = errors.New("webhook timeout must be positive")
	ErrInvalidEnv            = errors.New("invalid environment value")
)

// NewDefaultConfig creates a configuration with sensible defaults for all
// engine settings and stores
func NewDefaultConfig() *Config {
	return &Config{
		APIPort: DefaultAPIPort,
		APIHost: DefaultAPIHost,
		Archive: ArchiveConfig{
			Redis: RedisConfig{
				DB:     DefaultRedisDB,
				Prefix: DefaultArchivePrefix,
			},
			QueueSize: DefaultArchiveQueueSize,
		},
		KVStore: RedisConfig{
			DB:     DefaultRedisDB,
			Prefix: DefaultKVPrefix,
		},
		StepTimeout:     DefaultStepTimeout,
		RunCacheSize:    DefaultRunCacheSize,
		ShutdownTimeout: DefaultShutdownTimeout,
		WebhookTimeout:  DefaultWebhookTimeout,
		LogLevel:        "info",
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed.
func (c *Config) LoadFromEnv() error {
	if err := LoadRedisConfigFromEnv(&c.Archive.Redis, "ARCHIVE"); err != nil {
		return err
	}
	if err := LoadRedisConfigFromEnv(&c.KVStore, "STORE"); err != nil {
		return err
	}

	if apiHost := os.Getenv("API_HOST"); apiHost != "" {
		c.APIHost = apiHost
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if bucket := os.Getenv("ARCHIVE_BUCKET_URL"); bucket != "" {
		c.Archive.BucketURL = bucket
	}

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt(
		"RUN_CACHE_SIZE", &c.RunCacheSize, 0, MaxRunCacheSize,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"ARCHIVE_QUEUE_SIZE", &c.Archive.QueueSize, 0, MaxArchiveQueueSize,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"STEP_TIMEOUT", &c.StepTimeout, 0, MaxStepTimeout,
	); err != nil {
		return err
	}
	if err := loadEnvMillis(
		"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout, MaxShutdownTimeout,
	); err != nil {
		return err
	}
	return loadEnvMillis(
		"WEBHOOK_TIMEOUT", &c.WebhookTimeout, MaxWebhookTimeout,
	)
}

// StepDeadline returns the per-step time limit
func (c *Config) StepDeadline() time.Duration {
	return time.Duration(c.StepTimeout) * time.Millisecond
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}

	if c.StepTimeout <= 0 {
		return ErrInvalidStepTimeout
	}

	if c.RunCacheSize <= 0 {
		return ErrInvalidRunCacheSize
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	if c.WebhookTimeout <= 0 {
		return ErrInvalidWebhookTimeout
	}

	return nil
}

// LoadRedisConfigFromEnv loads Redis configuration from environment
// variables with the given prefix (e.g., "ARCHIVE" or "STORE")
func LoadRedisConfigFromEnv(s *RedisConfig, prefix string) error {
	if addr := os.Getenv(prefix + "_REDIS_ADDR"); addr != "" {
		s.Addr = addr
	}
	if password := os.Getenv(prefix + "_REDIS_PASSWORD"); password != "" {
		s.Password = password
	}
	if envPrefix := os.Getenv(prefix + "_REDIS_PREFIX"); envPrefix != "" {
		s.Prefix = envPrefix
	}
	if dbStr := os.Getenv(prefix + "_REDIS_DB"); dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err != nil || db < 0 {
			return fmt.Errorf("%w: %s_REDIS_DB: %q",
				ErrInvalidEnv, prefix, dbStr)
		}
		s.DB = db
	}
	return nil
}

// Enabled reports whether an address was configured
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]. Returns an error if
// the value cannot be parsed or falls outside the valid range.
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s: %q", ErrInvalidEnv, key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("%w: %s: %d out of range [%d, %d]",
			ErrInvalidEnv, key, tv, min+1, max)
	}
	*dst = tv
	return nil
}

func loadEnvMillis(key string, dst *time.Duration, max int64) error {
	ms := int64(*dst / time.Millisecond)
	if err := loadEnvInt(key, &ms, 0, max); err != nil {
		return err
	}
	*dst = time.Duration(ms) * time.Millisecond
	return nil
}
