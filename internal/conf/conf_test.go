package conf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("GUARD_CONFIG_PATH", "")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("STATE_DB_PATH", "")
	t.Setenv("RECONNECT_DELAY_SECONDS", "")
	t.Setenv("MAX_MESSAGES", "")
	t.Setenv("SLACK_CHANNEL", "")
	for _, name := range []string{"FAST_RECONNECT_SECONDS", "HEALTH_CHECK_SECONDS", "MAX_CONNECTION_AGE_MINUTES", "REACTIVATION_MINUTES", "SLACK_API_RATE_PER_SECOND"} {
		t.Setenv(name, "")
	}

	cfg := LoadFromEnv()

	assert.Equal(t, "127.0.0.1:9876", cfg.ListenAddr)
	assert.Equal(t, "state.db", filepath.Base(cfg.StateDBPath))
	assert.Equal(t, 5*time.Second, cfg.Feed.ReconnectDelay)
	assert.Equal(t, time.Second, cfg.Feed.FastReconnectDelay)
	assert.Equal(t, time.Minute, cfg.Feed.HealthInterval)
	assert.Equal(t, 30*time.Minute, cfg.Feed.MaxConnectionAge)
	assert.Equal(t, 30*time.Minute, cfg.Reactivation)
	assert.Equal(t, domain.DefaultMaxMessages, cfg.MaxMessages)
	assert.Equal(t, 1.0, cfg.SlackRatePerSecond)
	assert.False(t, cfg.InMemory())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("GUARD_CONFIG_PATH", "")
	t.Setenv("STATE_DB_PATH", "memory")
	t.Setenv("RECONNECT_DELAY_SECONDS", "9")
	t.Setenv("HEALTH_CHECK_SECONDS", "not a number")
	t.Setenv("REACTIVATION_MINUTES", "2")
	t.Setenv("SLACK_TOKEN", "xoxb-env")
	t.Setenv("SLACK_CHANNEL", "releases")
	t.Setenv("DESKTOP_NOTIFY", "true")
	t.Setenv("DEBUG", "true")

	cfg := LoadFromEnv()

	assert.True(t, cfg.InMemory())
	assert.Equal(t, 9*time.Second, cfg.Feed.ReconnectDelay)
	assert.Equal(t, time.Minute, cfg.Feed.HealthInterval)
	assert.Equal(t, 2*time.Minute, cfg.ToCountdownConfig().Timeout)
	assert.Equal(t, "xoxb-env", cfg.Seed.SlackToken)
	assert.Equal(t, "releases", cfg.Seed.ChannelName)
	assert.True(t, cfg.DesktopNotify)
	assert.True(t, cfg.Debug)
}

func TestLoadFromEnv_GuardFileUnderEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
slack:
  channel: deploys
page:
  url_pattern: "https://bb.example.com/*"
phrases:
  disallowed: [freeze, " ", code red]
`), 0o644))
	t.Setenv("GUARD_CONFIG_PATH", path)
	t.Setenv("SLACK_CHANNEL", "hotfixes")
	t.Setenv("BITBUCKET_URL", "")
	t.Setenv("DISALLOWED_PHRASES", "")
	t.Setenv("ALLOWED_PHRASES", "")

	cfg := LoadFromEnv()

	assert.Equal(t, "hotfixes", cfg.Seed.ChannelName)
	assert.Equal(t, "https://bb.example.com/*", cfg.Seed.BitbucketURL)
	assert.Equal(t, "freeze, code red", cfg.Seed.DisallowedPhrases)
	assert.Empty(t, cfg.Seed.AllowedPhrases)
}

func TestValidate(t *testing.T) {
	t.Setenv("GUARD_CONFIG_PATH", "")
	base := LoadFromEnv()

	tests := []struct {
		name  string
		edit  func(c *Config)
		field string
	}{
		{"listen addr", func(c *Config) { c.ListenAddr = "" }, "LISTEN_ADDR"},
		{"state path", func(c *Config) { c.StateDBPath = "" }, "STATE_DB_PATH"},
		{"reconnect", func(c *Config) { c.Feed.ReconnectDelay = 0 }, "RECONNECT_DELAY_SECONDS"},
		{"max age", func(c *Config) { c.Feed.MaxConnectionAge = -time.Second }, "MAX_CONNECTION_AGE_MINUTES"},
		{"max messages", func(c *Config) { c.MaxMessages = 0 }, "MAX_MESSAGES"},
		{"rate", func(c *Config) { c.SlackRatePerSecond = 0 }, "SLACK_API_RATE_PER_SECOND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.edit(&cfg)
			err := cfg.Validate()
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestLoadGuardConfig_Errors(t *testing.T) {
	_, err := LoadGuardConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("phrases: [unclosed"), 0o644))
	cfg, err := LoadGuardConfig(path)
	assert.Error(t, err)
	assert.Equal(t, domain.Settings{}, cfg.Settings())
}
