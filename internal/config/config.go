// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	State     StateConfig     `mapstructure:"state"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Vision    VisionConfig    `mapstructure:"vision"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Search    SearchConfig    `mapstructure:"search"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// RateLimitConfig controls the sliding-window limiter on the search endpoint.
type RateLimitConfig struct {
	AnonymousLimit     int    `mapstructure:"anonymous_limit"`
	AuthenticatedLimit int    `mapstructure:"authenticated_limit"`
	WindowSeconds      int    `mapstructure:"window_seconds"`
	BlockSeconds       int    `mapstructure:"block_seconds"`
	PathPrefix         string `mapstructure:"path_prefix"`
}

// StateConfig locates the durable search-record store.
type StateConfig struct {
	Dir string `mapstructure:"dir"`
}

// StorageConfig selects where uploaded images are persisted.
type StorageConfig struct {
	// Provider is "local" or "gcs".
	Provider string `mapstructure:"provider"`
	BaseDir  string `mapstructure:"base_dir"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// VisionConfig configures the image analysis client.
type VisionConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Endpoint       string `mapstructure:"endpoint"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ScraperConfig selects and tunes the store searcher.
type ScraperConfig struct {
	// Provider is "simulated" or "colly".
	Provider       string  `mapstructure:"provider"`
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RPS            float64 `mapstructure:"rps"`
	Burst          int     `mapstructure:"burst"`
	MaxResults     int     `mapstructure:"max_results"`
}

// SearchConfig tunes the orchestrator.
type SearchConfig struct {
	AnalyzeTimeoutSeconds int `mapstructure:"analyze_timeout_seconds"`
	StoreTimeoutSeconds   int `mapstructure:"store_timeout_seconds"`
	EstimatedSeconds      int `mapstructure:"estimated_seconds"`
}

// DBConfig controls access to the analytics database. Empty DSN disables it.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// PubSubConfig holds metadata for completion notifications. Empty project
// disables publishing.
type PubSubConfig struct {
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
	v.SetEnvPrefix("STYLEHOUND")
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
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("rate_limit.anonymous_limit", 10)
	v.SetDefault("rate_limit.authenticated_limit", 100)
	v.SetDefault("rate_limit.window_seconds", 3600)
	v.SetDefault("rate_limit.block_seconds", 3600)
	v.SetDefault("rate_limit.path_prefix", "/api/searches")
	v.SetDefault("state.dir", "search_statuses")
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.base_dir", "uploads")
	v.SetDefault("storage.prefix", "images")
	v.SetDefault("vision.timeout_seconds", 30)
	v.SetDefault("scraper.provider", "simulated")
	v.SetDefault("scraper.user_agent", "stylehound-bot/0.1")
	v.SetDefault("scraper.timeout_seconds", 15)
	v.SetDefault("scraper.rps", 1.0)
	v.SetDefault("scraper.burst", 1)
	v.SetDefault("scraper.max_results", 20)
	v.SetDefault("search.analyze_timeout_seconds", 30)
	v.SetDefault("search.store_timeout_seconds", 30)
	v.SetDefault("search.estimated_seconds", 10)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.RateLimit.AnonymousLimit <= 0 {
		return fmt.Errorf("rate_limit.anonymous_limit must be > 0")
	}
	if c.RateLimit.AuthenticatedLimit < c.RateLimit.AnonymousLimit {
		return fmt.Errorf("rate_limit.authenticated_limit must be >= anonymous_limit")
	}
	if c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("rate_limit.window_seconds must be > 0")
	}
	switch c.Storage.Provider {
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set for the local provider")
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("storage.provider must be local or gcs, got %q", c.Storage.Provider)
	}
	switch c.Scraper.Provider {
	case "simulated", "colly":
	default:
		return fmt.Errorf("scraper.provider must be simulated or colly, got %q", c.Scraper.Provider)
	}
	if c.State.Dir == "" {
		return fmt.Errorf("state.dir must be set")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return fmt.Errorf("pubsub.topic_name must be set when pubsub.project_id is set")
	}
	return nil
}

// RateLimitWindow returns the sliding-window width as a duration.
func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}

// RateLimitBlock returns the cooldown as a duration.
func (c Config) RateLimitBlock() time.Duration {
	return time.Duration(c.RateLimit.BlockSeconds) * time.Second
}
