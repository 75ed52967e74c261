// Package config manages application configuration from config.yaml,
// LUMIO_* environment variables, and default values.
package config

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Config defines the application configuration parameters for all
// components of the bridge: logging, storage, the two chat platforms,
// the moderation oracle, the verdict poller, and the HTTP API.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Discord    DiscordConfig    `mapstructure:"discord"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Assistant  AssistantConfig  `mapstructure:"assistant"`
	API        APIConfig        `mapstructure:"api"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig holds SQLite connection settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TelegramConfig holds the Telegram bot settings. An empty token
// disables the Telegram bridge.
type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

// DiscordConfig holds the Discord bot settings. An empty token
// disables the Discord bridge.
type DiscordConfig struct {
	Token string `mapstructure:"token"`
}

// OracleConfig describes how to reach the moderation oracle gateway.
type OracleConfig struct {
	BaseURL           string        `mapstructure:"base_url"           validate:"required,url"`
	ModerationProcess string        `mapstructure:"moderation_process" validate:"required"`
	LogProcess        string        `mapstructure:"log_process"        validate:"required"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"    validate:"min=1s,max=5m"`
	LogQueryTimeout   time.Duration `mapstructure:"log_query_timeout"  validate:"min=1s,max=5m"`
}

// ModerationConfig tunes the verdict poller and enforcement behavior.
type ModerationConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"min=1s,max=10m"`

	// BanDuration is the length of the temporary suspension applied on a
	// reject verdict. Telegram receives it as the ban until_date; Discord
	// receives it as a member timeout. The upstream moderation process
	// historically used 100000 seconds; this is a policy value, not a
	// permanent ban.
	BanDuration time.Duration `mapstructure:"ban_duration" validate:"min=1m"`

	// MaxConcurrentFetches bounds the per-sweep fan-out of verdict
	// fetch+enforce tasks.
	MaxConcurrentFetches int64 `mapstructure:"max_concurrent_fetches" validate:"min=1,max=128"`
}

// AssistantConfig holds the Gemini-backed community assistant settings.
// An empty API key disables the assistant.
type AssistantConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"       validate:"required"`
	Instruction string        `mapstructure:"instruction"`
	Timeout     time.Duration `mapstructure:"timeout"     validate:"min=1s,max=10m"`
	MaxRetries  int           `mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" validate:"min=1s,max=1m"`
}

// APIConfig holds the dashboard/collaborator HTTP API settings.
type APIConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
