package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	quillerrors "thoreinstein.com/quill/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Feedback.Enabled)
	assert.Empty(t, cfg.Feedback.BaseURL)
	assert.Equal(t, []string{"ansible"}, cfg.Feedback.Languages)
	assert.Equal(t, 10*time.Second, cfg.Feedback.Timeout)
	assert.Equal(t, 5.0, cfg.Feedback.RateLimit)
	assert.Equal(t, 10, cfg.Feedback.Burst)
	assert.Equal(t, []string{"read", "write"}, cfg.Auth.Scopes)
	assert.Equal(t, "1.0.0", cfg.Session.MinPluginVersion)
}

func TestLoad_FromTOMLFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[feedback]
enabled = true
base_url = "https://suggest.example.com"
languages = ["ansible", "yaml"]
timeout = "3s"

[auth]
client_id = "abc123"
token_cache_path = "~/quill-token.json"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Feedback.Enabled)
	assert.Equal(t, "https://suggest.example.com", cfg.Feedback.BaseURL)
	assert.True(t, cfg.Feedback.Tracks("yaml"))
	assert.False(t, cfg.Feedback.Tracks("python"))
	assert.Equal(t, 3*time.Second, cfg.Feedback.Timeout)
	assert.Equal(t, "abc123", cfg.Auth.ClientID)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "quill-token.json"), cfg.Auth.TokenCachePath)
}

func TestLoad_InvalidConfigFails(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("feedback.base_url", "not a url")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, quillerrors.IsConfigError(err))
}

func TestLoad_TrimsBaseURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "blank", raw: "   ", want: ""},
		{name: "padded", raw: " https://suggest.example.com\t", want: "https://suggest.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			viper.Set("feedback.base_url", tt.raw)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Feedback.BaseURL)
			assert.Equal(t, tt.want != "", cfg.Feedback.HasEndpoint())
		})
	}
}

func TestFeedbackConfig_HasEndpoint(t *testing.T) {
	assert.False(t, FeedbackConfig{}.HasEndpoint())
	assert.False(t, FeedbackConfig{BaseURL: " \t "}.HasEndpoint())
	assert.True(t, FeedbackConfig{BaseURL: "https://suggest.example.com"}.HasEndpoint())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Feedback: FeedbackConfig{
				BaseURL:   "https://suggest.example.com",
				Timeout:   time.Second,
				RateLimit: 1,
				Burst:     1,
			},
			Session: SessionConfig{MinPluginVersion: "2.1.0"},
		}
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty base URL allowed", mutate: func(c *Config) { c.Feedback.BaseURL = "" }},
		{name: "relative base URL", mutate: func(c *Config) { c.Feedback.BaseURL = "/api" }, wantField: "feedback.base_url"},
		{name: "ftp base URL", mutate: func(c *Config) { c.Feedback.BaseURL = "ftp://x.example.com" }, wantField: "feedback.base_url"},
		{name: "zero rate limit", mutate: func(c *Config) { c.Feedback.RateLimit = 0 }, wantField: "feedback.rate_limit"},
		{name: "zero burst", mutate: func(c *Config) { c.Feedback.Burst = 0 }, wantField: "feedback.burst"},
		{name: "zero timeout", mutate: func(c *Config) { c.Feedback.Timeout = 0 }, wantField: "feedback.timeout"},
		{name: "bad plugin version", mutate: func(c *Config) { c.Session.MinPluginVersion = "latest" }, wantField: "session.min_plugin_version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var cfgErr *quillerrors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)
		})
	}
}

func TestCheckSecurityWarnings(t *testing.T) {
	t.Setenv("QUILL_AUTH_TOKEN", "")

	cfg := &Config{
		Feedback: FeedbackConfig{BaseURL: "http://suggest.example.com"},
		Auth:     AuthConfig{Token: "secret"},
	}

	warnings := CheckSecurityWarnings(cfg)
	require.Len(t, warnings, 2)
	assert.Equal(t, "auth.token", warnings[0].Field)
	assert.Equal(t, "feedback.base_url", warnings[1].Field)

	t.Setenv("QUILL_AUTH_TOKEN", "from-env")
	cfg.Feedback.BaseURL = "https://suggest.example.com"
	assert.Empty(t, CheckSecurityWarnings(cfg))
}
