package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Conveyor  ConveyorConfig  `mapstructure:"conveyor"`
	Events    EventsConfig    `mapstructure:"events"`
	Server    ServerConfig    `mapstructure:"server"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite
	DSN    string `mapstructure:"dsn"`    // Connection string
}

// AnthropicConfig holds Claude API settings
type AnthropicConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	// USD prices per million tokens, used for spend accounting
	InputPricePerMTok  float64 `mapstructure:"input_price_per_mtok"`
	OutputPricePerMTok float64 `mapstructure:"output_price_per_mtok"`
}

// IngestConfig holds content ingestion settings
type IngestConfig struct {
	RSS RSSConfig `mapstructure:"rss"`
}

// RSSConfig holds RSS feed settings
type RSSConfig struct {
	Enabled bool      `mapstructure:"enabled"`
	Feeds   []RSSFeed `mapstructure:"feeds"`
	MaxAge  string    `mapstructure:"max_age"` // Skip items older than this
}

// RSSFeed represents a single RSS feed
type RSSFeed struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// ConveyorConfig holds scheduler settings
type ConveyorConfig struct {
	PassCron string `mapstructure:"pass_cron"` // When to run automatic scheduling passes
	// Minimum number of terminal scripts before the learned threshold
	// replaces the static one
	LearnedThresholdMinHistory int `mapstructure:"learned_threshold_min_history"`
	LearnedThresholdWindow     int `mapstructure:"learned_threshold_window"`
	// How many transport-level retries per agent call before the iteration fails
	MaxTransportRetries int `mapstructure:"max_transport_retries"`
}

// EventsConfig holds event stream settings
type EventsConfig struct {
	ReplayBufferSize int `mapstructure:"replay_buffer_size"` // Events kept per item for replay
	SubscriberBuffer int `mapstructure:"subscriber_buffer"`  // Channel depth per live subscriber
	HistoryLimit     int `mapstructure:"history_limit"`      // Default history fetch size
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	AnthropicRequestsPerMinute int `mapstructure:"anthropic_requests_per_minute"`
	SourceRequestsPerHour      int `mapstructure:"source_requests_per_hour"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in current directory and configs folder
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		// Also check user's home directory
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".shortform-agent"))
		}
	}

	// Environment variables
	v.SetEnvPrefix("SHORTFORM")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("anthropic.api_key", "SHORTFORM_ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.model", "SHORTFORM_ANTHROPIC_MODEL")
	v.BindEnv("database.driver", "SHORTFORM_DATABASE_DRIVER")
	v.BindEnv("database.dsn", "SHORTFORM_DATABASE_DSN")
	v.BindEnv("server.addr", "SHORTFORM_SERVER_ADDR")
	v.BindEnv("conveyor.pass_cron", "SHORTFORM_CONVEYOR_PASS_CRON")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/shortform.db")

	// Anthropic defaults
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.temperature", 0.7)
	v.SetDefault("anthropic.input_price_per_mtok", 3.0)
	v.SetDefault("anthropic.output_price_per_mtok", 15.0)

	// Ingest defaults
	v.SetDefault("ingest.rss.enabled", true)
	v.SetDefault("ingest.rss.max_age", "168h") // 7 days

	// Conveyor defaults
	v.SetDefault("conveyor.pass_cron", "0 */2 * * *") // Every 2 hours
	v.SetDefault("conveyor.learned_threshold_min_history", 10)
	v.SetDefault("conveyor.learned_threshold_window", 20)
	v.SetDefault("conveyor.max_transport_retries", 3)

	// Events defaults
	v.SetDefault("events.replay_buffer_size", 50)
	v.SetDefault("events.subscriber_buffer", 100)
	v.SetDefault("events.history_limit", 50)

	// Server defaults
	v.SetDefault("server.addr", ":8080")

	// Rate limit defaults
	v.SetDefault("rate_limit.anthropic_requests_per_minute", 10)
	v.SetDefault("rate_limit.source_requests_per_hour", 60)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration. Missing provider credentials fail
// fast here, before any agent call is attempted.
func (c *Config) Validate() error {
	if c.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic.api_key is required")
	}
	if c.Anthropic.MaxTokens <= 0 {
		return fmt.Errorf("anthropic.max_tokens must be positive")
	}
	return nil
}
