package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for lexwatch-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8090"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (scan guard + event publishing, optional)
	Redis RedisConfig `yaml:"redis"`

	// AI provider configuration
	AI AIConfig `yaml:"ai"`

	// Content fetching configuration
	Fetcher FetcherConfig `yaml:"fetcher"`

	// Raw-content archive configuration (MinIO, optional)
	Archive ArchiveConfig `yaml:"archive"`

	// Change detector thresholds
	Detector DetectorConfig `yaml:"detector"`

	// Extraction retry configuration
	Extractor ExtractorConfig `yaml:"extractor"`

	// Scheduled scan configuration
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// MigrationsPath is the directory containing SQL migration files.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	// CredentialsKey encrypts source auth credentials at rest when set.
	// Accepts a base64-encoded 32-byte key or any passphrase.
	CredentialsKey string `yaml:"-" env:"CREDENTIALS_ENCRYPTION_KEY"` // Secret - not in YAML
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"lexwatch"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"lexwatch_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis connection configuration. Redis backs the
// same-source scan guard and revision-processed event publishing. Leaving
// Host empty disables both.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// AIConfig holds LLM provider configuration.
type AIConfig struct {
	// Provider selects the client implementation: "openai" or "anthropic".
	// The openai client works with any OpenAI-compatible endpoint.
	Provider    string  `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`
	BaseURL     string  `yaml:"base_url" env:"AI_BASE_URL" env-default:""`
	Model       string  `yaml:"model" env:"AI_MODEL" env-default:"gpt-4o-mini"`
	APIKey      string  `yaml:"-" env:"AI_API_KEY"` // Secret - not in YAML
	Temperature float32 `yaml:"temperature" env:"AI_TEMPERATURE" env-default:"0.2"`
	MaxTokens   int     `yaml:"max_tokens" env:"AI_MAX_TOKENS" env-default:"4096"`
}

// FetcherConfig holds HTTP content fetcher settings.
type FetcherConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"FETCHER_TIMEOUT_SECONDS" env-default:"60"`
	UserAgent      string `yaml:"user_agent" env:"FETCHER_USER_AGENT" env-default:"lexwatch-engine/1.0"`
	// MaxBodyBytes caps how much of a response body is read. Regulatory
	// pages are small; anything past this limit is suspect.
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"FETCHER_MAX_BODY_BYTES" env-default:"20971520"`
}

// ArchiveConfig holds object-store settings for raw payload archiving.
// Leaving Endpoint empty disables archiving.
type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint" env:"ARCHIVE_ENDPOINT" env-default:""`
	AccessKey string `yaml:"-" env:"ARCHIVE_ACCESS_KEY"` // Secret - not in YAML
	SecretKey string `yaml:"-" env:"ARCHIVE_SECRET_KEY"` // Secret - not in YAML
	Bucket    string `yaml:"bucket" env:"ARCHIVE_BUCKET" env-default:"lexwatch-raw"`
	UseSSL    bool   `yaml:"use_ssl" env:"ARCHIVE_USE_SSL" env-default:"false"`
}

// DetectorConfig holds change-detection similarity thresholds. The
// thresholds are a tuned false-positive/false-negative tradeoff, not a
// correctness boundary, so they stay configurable.
type DetectorConfig struct {
	// SummaryThreshold is the minimum Jaccard word-set similarity below
	// which two string fields count as changed.
	SummaryThreshold float64 `yaml:"summary_threshold" env:"DETECTOR_SUMMARY_THRESHOLD" env-default:"0.85"`
	// ListThreshold applies to list fields after joining elements into a
	// single string.
	ListThreshold float64 `yaml:"list_threshold" env:"DETECTOR_LIST_THRESHOLD" env-default:"0.80"`
}

// ExtractorConfig holds structured-extraction retry settings.
type ExtractorConfig struct {
	// MaxRetries is the number of additional attempts after a failed
	// extraction (JSON decode or schema validation failure).
	MaxRetries int `yaml:"max_retries" env:"EXTRACTOR_MAX_RETRIES" env-default:"3"`
}

// SchedulerConfig holds periodic scan settings.
type SchedulerConfig struct {
	Enabled bool `yaml:"enabled" env:"SCHEDULER_ENABLED" env-default:"true"`
	// CronSpec uses standard 5-field cron syntax. Default: daily at 03:00.
	CronSpec string `yaml:"cron_spec" env:"SCHEDULER_CRON_SPEC" env-default:"0 3 * * *"`
	// MaxConcurrentScans bounds how many sources are processed at once
	// during a scheduled run.
	MaxConcurrentScans int `yaml:"max_concurrent_scans" env:"SCHEDULER_MAX_CONCURRENT_SCANS" env-default:"4"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time and set on the
// returned Config. Secrets (PGPASSWORD, AI_API_KEY, ARCHIVE_ACCESS_KEY,
// ARCHIVE_SECRET_KEY, REDIS_PASSWORD) must come from environment variables
// (yaml:"-" fields). A missing config.yaml is not an error; environment
// variables and defaults apply alone.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.AI.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown ai provider %q (expected openai or anthropic)", c.AI.Provider)
	}

	if c.Detector.SummaryThreshold < 0 || c.Detector.SummaryThreshold > 1 {
		return fmt.Errorf("detector summary_threshold %v out of range [0,1]", c.Detector.SummaryThreshold)
	}
	if c.Detector.ListThreshold < 0 || c.Detector.ListThreshold > 1 {
		return fmt.Errorf("detector list_threshold %v out of range [0,1]", c.Detector.ListThreshold)
	}

	if c.Extractor.MaxRetries < 0 {
		return fmt.Errorf("extractor max_retries must be >= 0, got %d", c.Extractor.MaxRetries)
	}

	if c.Scheduler.MaxConcurrentScans < 1 {
		return fmt.Errorf("scheduler max_concurrent_scans must be >= 1, got %d", c.Scheduler.MaxConcurrentScans)
	}

	return nil
}
