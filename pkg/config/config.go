package config

import (
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	quillerrors "thoreinstein.com/quill/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	Feedback FeedbackConfig `mapstructure:"feedback"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Session  SessionConfig  `mapstructure:"session"`
}

// FeedbackConfig holds content feedback configuration
type FeedbackConfig struct {
	Enabled   bool          `mapstructure:"enabled"`    // Master switch for feedback events
	BaseURL   string        `mapstructure:"base_url"`   // e.g., "https://c.ai.ansible.redhat.com"
	Languages []string      `mapstructure:"languages"`  // Editor language IDs that are tracked
	Timeout   time.Duration `mapstructure:"timeout"`    // Per-submission HTTP timeout
	RateLimit float64       `mapstructure:"rate_limit"` // Sustained submissions per second
	Burst     int           `mapstructure:"burst"`      // Submissions allowed in a burst
}

// AuthConfig holds credential configuration for the suggestion service
type AuthConfig struct {
	ClientID       string   `mapstructure:"client_id"`        // OAuth client ID for device flow
	Scopes         []string `mapstructure:"scopes"`           // OAuth scopes to request
	Token          string   `mapstructure:"token"`            // Static bearer token (QUILL_AUTH_TOKEN env var takes precedence)
	TokenCachePath string   `mapstructure:"token_cache_path"` // File cache used when no keychain is available
}

// SessionConfig holds editor session settings
type SessionConfig struct {
	MinPluginVersion string `mapstructure:"min_plugin_version"` // Oldest editor plugin accepted by the hello handshake
}

// SecurityWarning represents a configuration security issue
type SecurityWarning struct {
	Field   string
	Message string
}

// Tracks reports whether documents with the given language ID are tracked.
func (f FeedbackConfig) Tracks(languageID string) bool {
	return slices.Contains(f.Languages, languageID)
}

// HasEndpoint reports whether a feedback base URL is set. Blank values count
// as unset.
func (f FeedbackConfig) HasEndpoint() bool {
	return strings.TrimSpace(f.BaseURL) != ""
}

// Load loads the configuration from file and environment variables
func Load() (*Config, error) {
	config := &Config{}

	// Set defaults
	setDefaults()

	// Unmarshal the config
	if err := viper.Unmarshal(config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	config.Feedback.BaseURL = strings.TrimSpace(config.Feedback.BaseURL)

	var err error
	config.Auth.TokenCachePath, err = expandPath(config.Auth.TokenCachePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to expand paths")
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return config, nil
}

// CheckSecurityWarnings returns warnings for insecure configuration practices.
func CheckSecurityWarnings(config *Config) []SecurityWarning {
	var warnings []SecurityWarning

	if config.Auth.Token != "" && os.Getenv("QUILL_AUTH_TOKEN") == "" {
		warnings = append(warnings, SecurityWarning{
			Field:   "auth.token",
			Message: "Auth token is set in config file. For security, use QUILL_AUTH_TOKEN environment variable or 'quill login' instead.",
		})
	}

	if strings.HasPrefix(config.Feedback.BaseURL, "http://") {
		warnings = append(warnings, SecurityWarning{
			Field:   "feedback.base_url",
			Message: "Feedback base URL uses plain http; document content and credentials will be sent unencrypted.",
		})
	}

	return warnings
}

// ValidateBaseURL checks that a non-empty base URL is an absolute http(s) URL.
func ValidateBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil // Empty is allowed, feedback stays suppressed
	}
	u, err := url.Parse(raw)
	if err != nil {
		return quillerrors.NewConfigErrorWithCause("feedback.base_url", "invalid URL", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return quillerrors.NewConfigError("feedback.base_url", "must be an absolute http or https URL")
	}
	return nil
}

// Validate validates the configuration and returns any validation errors.
func (c *Config) Validate() error {
	if err := ValidateBaseURL(c.Feedback.BaseURL); err != nil {
		return err
	}
	if c.Feedback.RateLimit <= 0 {
		return quillerrors.NewConfigError("feedback.rate_limit", "must be greater than zero")
	}
	if c.Feedback.Burst <= 0 {
		return quillerrors.NewConfigError("feedback.burst", "must be greater than zero")
	}
	if c.Feedback.Timeout <= 0 {
		return quillerrors.NewConfigError("feedback.timeout", "must be greater than zero")
	}
	if c.Session.MinPluginVersion != "" {
		if _, err := semver.NewVersion(c.Session.MinPluginVersion); err != nil {
			return quillerrors.NewConfigErrorWithCause("session.min_plugin_version", "not a semantic version", err)
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fall back to current directory if home dir can't be determined
		homeDir = "."
	}

	// Feedback defaults; disabled until a base URL is configured
	viper.SetDefault("feedback.enabled", false)
	viper.SetDefault("feedback.base_url", "")
	viper.SetDefault("feedback.languages", []string{"ansible"})
	viper.SetDefault("feedback.timeout", 10*time.Second)
	viper.SetDefault("feedback.rate_limit", 5.0)
	viper.SetDefault("feedback.burst", 10)

	// Auth defaults
	viper.SetDefault("auth.client_id", "")
	viper.SetDefault("auth.scopes", []string{"read", "write"})
	viper.SetDefault("auth.token", "")
	viper.SetDefault("auth.token_cache_path", filepath.Join(homeDir, ".config", "quill", "token.json"))

	// Session defaults
	viper.SetDefault("session.min_plugin_version", "1.0.0")
}

// expandPath expands ~ to home directory
func expandPath(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, path[1:]), nil
}
