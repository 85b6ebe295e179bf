package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
	"github.com/devricklin/slack-merge-gate/internal/biz/usecase"
	"github.com/devricklin/slack-merge-gate/internal/logging"
)

// MemoryStatePath selects the in-memory KV store
const MemoryStatePath = "memory"

// Config represents application configuration
type Config struct {
	// State database path, or "memory"
	StateDBPath string

	// HTTP API listen address
	ListenAddr string

	// Logging configuration
	Log LogConfig

	// Feed connection timing
	Feed FeedConfig

	// How long the merge guard stays disabled after being switched off
	Reactivation time.Duration

	// Message store cap
	MaxMessages int

	// Slack API pacing
	SlackRatePerSecond float64

	// Desktop notification on icon status change
	DesktopNotify bool

	// Synced settings written into the store at startup when empty there
	Seed domain.Settings

	// Debug mode
	Debug bool
}

// LogConfig contains logging configuration
type LogConfig struct {
	Dir    string
	Level  string
	Format string
}

// FeedConfig contains feed connection timing
type FeedConfig struct {
	ReconnectDelay     time.Duration
	FastReconnectDelay time.Duration
	HealthInterval     time.Duration
	MaxConnectionAge   time.Duration
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// State DB path
	stateDBPath := os.Getenv("STATE_DB_PATH")
	if stateDBPath == "" {
		homeDir, _ := os.UserHomeDir()
		stateDBPath = filepath.Join(homeDir, ".slack-merge-gate", "state.db")
	}

	listenAddr := os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = "127.0.0.1:9876"
	}

	ratePerSecond := 1.0
	if val := os.Getenv("SLACK_API_RATE_PER_SECOND"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			ratePerSecond = parsed
		}
	}

	// Seeds from the optional guard file, overridden by the environment
	guard, err := LoadGuardConfig(os.Getenv("GUARD_CONFIG_PATH"))
	if err != nil {
		logging.Logger().Warn("guard_config_failed", "error", err)
	}
	seed := guard.Settings()
	override := func(dst *string, name string) {
		if val := os.Getenv(name); val != "" {
			*dst = val
		}
	}
	override(&seed.SlackToken, "SLACK_TOKEN")
	override(&seed.AppToken, "SLACK_APP_TOKEN")
	override(&seed.ChannelName, "SLACK_CHANNEL")
	override(&seed.BitbucketURL, "BITBUCKET_URL")
	override(&seed.MergeButtonSelector, "MERGE_BUTTON_SELECTOR")
	override(&seed.AllowedPhrases, "ALLOWED_PHRASES")
	override(&seed.DisallowedPhrases, "DISALLOWED_PHRASES")
	override(&seed.ExceptionPhrases, "EXCEPTION_PHRASES")

	return &Config{
		StateDBPath: stateDBPath,
		ListenAddr:  listenAddr,
		Log: LogConfig{
			Dir:    os.Getenv("LOG_DIR"),
			Level:  os.Getenv("LOG_LEVEL"),
			Format: os.Getenv("LOG_FORMAT"),
		},
		Feed: FeedConfig{
			ReconnectDelay:     time.Duration(envInt("RECONNECT_DELAY_SECONDS", 5)) * time.Second,
			FastReconnectDelay: time.Duration(envInt("FAST_RECONNECT_SECONDS", 1)) * time.Second,
			HealthInterval:     time.Duration(envInt("HEALTH_CHECK_SECONDS", 60)) * time.Second,
			MaxConnectionAge:   time.Duration(envInt("MAX_CONNECTION_AGE_MINUTES", 30)) * time.Minute,
		},
		Reactivation:       time.Duration(envInt("REACTIVATION_MINUTES", 30)) * time.Minute,
		MaxMessages:        envInt("MAX_MESSAGES", domain.DefaultMaxMessages),
		SlackRatePerSecond: ratePerSecond,
		DesktopNotify:      os.Getenv("DESKTOP_NOTIFY") == "true",
		Seed:               seed,
		Debug:              os.Getenv("DEBUG") == "true",
	}
}

func envInt(name string, def int) int {
	if val := os.Getenv(name); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// ToCountdownConfig converts to countdown configuration
func (c *Config) ToCountdownConfig() usecase.CountdownConfig {
	return usecase.CountdownConfig{Timeout: c.Reactivation}
}

// InMemory reports whether state is kept in memory only
func (c *Config) InMemory() bool {
	return c.StateDBPath == MemoryStatePath
}

// Validate validates the configuration. Missing Slack settings are not an
// error here; they surface as the config_error app status.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return &ConfigError{Field: "LISTEN_ADDR", Message: "required"}
	}
	if c.StateDBPath == "" {
		return &ConfigError{Field: "STATE_DB_PATH", Message: "required"}
	}
	checks := []struct {
		field string
		value time.Duration
	}{
		{"RECONNECT_DELAY_SECONDS", c.Feed.ReconnectDelay},
		{"FAST_RECONNECT_SECONDS", c.Feed.FastReconnectDelay},
		{"HEALTH_CHECK_SECONDS", c.Feed.HealthInterval},
		{"MAX_CONNECTION_AGE_MINUTES", c.Feed.MaxConnectionAge},
		{"REACTIVATION_MINUTES", c.Reactivation},
	}
	for _, chk := range checks {
		if chk.value <= 0 {
			return &ConfigError{Field: chk.field, Message: "must be positive"}
		}
	}
	if c.MaxMessages <= 0 {
		return &ConfigError{Field: "MAX_MESSAGES", Message: "must be positive"}
	}
	if c.SlackRatePerSecond <= 0 {
		return &ConfigError{Field: "SLACK_API_RATE_PER_SECOND", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
