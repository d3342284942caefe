package cmd

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

const redacted = "<redacted>"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect quill configuration",
}

// configShowCmd prints the effective configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the effective configuration as YAML.

Values merge defaults, the config file, .quill.toml project overrides and
QUILL_* environment variables. Tokens are redacted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}

		token := cfg.Auth.Token
		if token != "" {
			token = redacted
		}

		view := map[string]any{
			"config_file": viper.ConfigFileUsed(),
			"feedback": map[string]any{
				"enabled":    cfg.Feedback.Enabled,
				"base_url":   cfg.Feedback.BaseURL,
				"languages":  cfg.Feedback.Languages,
				"timeout":    cfg.Feedback.Timeout.String(),
				"rate_limit": cfg.Feedback.RateLimit,
				"burst":      cfg.Feedback.Burst,
			},
			"auth": map[string]any{
				"client_id":        cfg.Auth.ClientID,
				"scopes":           cfg.Auth.Scopes,
				"token":            token,
				"token_cache_path": cfg.Auth.TokenCachePath,
			},
			"session": map[string]any{
				"min_plugin_version": cfg.Session.MinPluginVersion,
			},
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return errors.Wrap(err, "failed to encode configuration")
		}
		return enc.Close()
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
