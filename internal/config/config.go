// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig      `mapstructure:"server"`
	Auth    AuthConfig        `mapstructure:"auth"`
	Scraper ScraperConfig     `mapstructure:"scraper"`
	HTTP    HTTPConfig        `mapstructure:"http"`
	Session SessionConfig     `mapstructure:"session"`
	Sink    SinkConfig        `mapstructure:"sink"`
	Archive ArchiveConfig     `mapstructure:"archive"`
	PubSub  PubSubConfig      `mapstructure:"pubsub"`
	Logging LoggingConfig     `mapstructure:"logging"`
	Presets map[string]string `mapstructure:"presets"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ScraperConfig governs pagination, enrichment, and worker behavior.
type ScraperConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	Source            string `mapstructure:"source"`
	Workers           int    `mapstructure:"workers"`
	QueueDepth        int    `mapstructure:"queue_depth"`
	BatchSize         int    `mapstructure:"batch_size"`
	RetryAttempts     int    `mapstructure:"retry_attempts"`
	FailureCeiling    int    `mapstructure:"failure_ceiling"`
	DetailConcurrency int    `mapstructure:"detail_concurrency"`
	PageDelayMinMs    int    `mapstructure:"page_delay_min_ms"`
	PageDelayMaxMs    int    `mapstructure:"page_delay_max_ms"`
	GroupDelayMinMs   int    `mapstructure:"group_delay_min_ms"`
	GroupDelayMaxMs   int    `mapstructure:"group_delay_max_ms"`
}

// HTTPConfig configures the upstream API client. FallbackSession and
// Headers hold opaque credentials; they are injected from the environment
// and must never be logged.
type HTTPConfig struct {
	TimeoutSeconds   int               `mapstructure:"timeout_seconds"`
	UserAgent        string            `mapstructure:"user_agent"`
	RateLimitRPS     float64           `mapstructure:"rate_limit_rps"`
	RateBurst        int               `mapstructure:"rate_burst"`
	BackoffInitialMs int               `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int               `mapstructure:"backoff_max_ms"`
	Headers          map[string]string `mapstructure:"headers"`
	FallbackSession  string            `mapstructure:"fallback_session"`
}

// SessionConfig configures the headless session provider.
type SessionConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	SettleDelayMs     int    `mapstructure:"settle_delay_ms"`
	LandmarkSelector  string `mapstructure:"landmark_selector"`
	LandmarkTimeoutMs int    `mapstructure:"landmark_timeout_ms"`
	ViewportWidth     int    `mapstructure:"viewport_width"`
	ViewportHeight    int    `mapstructure:"viewport_height"`
}

// SinkConfig controls the canonical record sink.
type SinkConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	Table           string `mapstructure:"table"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime_seconds"`
}

// ArchiveConfig controls raw payload archival.
type ArchiveConfig struct {
	Driver    string `mapstructure:"driver"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for completion-event publishing.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("scraper.source", "oemdirect")
	v.SetDefault("scraper.workers", 2)
	v.SetDefault("scraper.queue_depth", 64)
	v.SetDefault("scraper.batch_size", 50)
	v.SetDefault("scraper.retry_attempts", 3)
	v.SetDefault("scraper.failure_ceiling", 5)
	v.SetDefault("scraper.detail_concurrency", 5)
	v.SetDefault("scraper.page_delay_min_ms", 500)
	v.SetDefault("scraper.page_delay_max_ms", 1500)
	v.SetDefault("scraper.group_delay_min_ms", 250)
	v.SetDefault("scraper.group_delay_max_ms", 750)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	v.SetDefault("http.rate_limit_rps", 2.0)
	v.SetDefault("http.rate_burst", 1)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("session.enabled", false)
	v.SetDefault("session.nav_timeout_seconds", 25)
	v.SetDefault("session.settle_delay_ms", 2000)
	v.SetDefault("session.landmark_timeout_ms", 5000)
	v.SetDefault("session.viewport_width", 1920)
	v.SetDefault("session.viewport_height", 1080)
	v.SetDefault("sink.driver", "memory")
	v.SetDefault("sink.table", "catalog_records")
	v.SetDefault("archive.driver", "none")
	v.SetDefault("archive.prefix", "raw")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.BaseURL == "" && len(c.Presets) == 0 {
		return fmt.Errorf("scraper.base_url is required")
	}
	if c.Scraper.Workers <= 0 {
		return fmt.Errorf("scraper.workers must be > 0")
	}
	if c.Scraper.BatchSize <= 0 {
		return fmt.Errorf("scraper.batch_size must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Sink.Driver {
	case "memory":
	case "postgres":
		if c.Sink.DSN == "" {
			return fmt.Errorf("sink.dsn must be set when sink.driver is postgres")
		}
	default:
		return fmt.Errorf("unknown sink.driver %q", c.Sink.Driver)
	}
	switch c.Archive.Driver {
	case "none", "memory":
	case "local":
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set when archive.driver is local")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set when archive.driver is gcs")
		}
	default:
		return fmt.Errorf("unknown archive.driver %q", c.Archive.Driver)
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}

// HTTPTimeout converts the configured timeout into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
