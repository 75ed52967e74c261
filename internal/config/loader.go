package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default values for optional configuration parameters.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = true

	DefaultDBPath = "lumio.db"

	DefaultOracleRequestTimeout  = 30 * time.Second
	DefaultOracleLogQueryTimeout = 30 * time.Second

	DefaultPollInterval         = 5 * time.Second
	DefaultBanDuration          = 100000 * time.Second
	DefaultMaxConcurrentFetches = 8

	DefaultAssistantModel      = "gemini-2.0-flash"
	DefaultAssistantTimeout    = 2 * time.Minute
	DefaultAssistantMaxRetries = 2
	DefaultAssistantRetryDelay = 2 * time.Second

	DefaultAPIAddr = ":3000"
)

// DefaultAssistantInstruction is the base system prompt for the /ask
// assistant; server persona and docs prompts are appended per request.
const DefaultAssistantInstruction = "You are a community assistant. " +
	"Be clear, concise, and technically accurate. Answer first, add context " +
	"only when asked. Never invent APIs or facts; ask a clarifying question " +
	"when the request is ambiguous."

// Load loads and validates configuration from:
//  1. Default values
//  2. config.yaml in the working directory (optional)
//  3. LUMIO_* environment variables
func Load(path string) (*Config, error) {
	setDefaults()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("LUMIO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults plus environment
		// variables may be a complete configuration.
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("log.level", DefaultLogLevel)
	viper.SetDefault("log.json", DefaultLogJSON)

	viper.SetDefault("database.path", DefaultDBPath)

	viper.SetDefault("oracle.request_timeout", DefaultOracleRequestTimeout)
	viper.SetDefault("oracle.log_query_timeout", DefaultOracleLogQueryTimeout)

	viper.SetDefault("moderation.poll_interval", DefaultPollInterval)
	viper.SetDefault("moderation.ban_duration", DefaultBanDuration)
	viper.SetDefault("moderation.max_concurrent_fetches", DefaultMaxConcurrentFetches)

	viper.SetDefault("assistant.model", DefaultAssistantModel)
	viper.SetDefault("assistant.instruction", DefaultAssistantInstruction)
	viper.SetDefault("assistant.timeout", DefaultAssistantTimeout)
	viper.SetDefault("assistant.max_retries", DefaultAssistantMaxRetries)
	viper.SetDefault("assistant.retry_delay", DefaultAssistantRetryDelay)

	viper.SetDefault("api.addr", DefaultAPIAddr)
}
