package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"thoreinstein.com/quill/pkg/activity"
	"thoreinstein.com/quill/pkg/auth"
	"thoreinstein.com/quill/pkg/bootstrap"
	"thoreinstein.com/quill/pkg/config"
	"thoreinstein.com/quill/pkg/editor"
	"thoreinstein.com/quill/pkg/feedback"
)

// sessionCmd serves the editor protocol on stdin/stdout.
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Serve the editor plugin over stdin/stdout",
	Long: `Serve the editor plugin protocol on stdin/stdout.

The plugin writes one JSON request per line and reads one JSON response per
line. Accepted suggestions start activity tracking for a document; later
document, tab-change and file-close events are reported to the feedback
endpoint when the document content changed.

Logs are written to stderr. Edits to the config file apply to the running
session without a restart.

Examples:
  quill session
  quill --verbose session 2>quill.log`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runSession(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout(), newLogger(cmd.ErrOrStderr()))
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
}

// runSession wires the tracker, feedback submission and the editor handler,
// serves until in is exhausted or ctx is cancelled, then waits for in-flight
// submissions.
func runSession(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, logger *slog.Logger) error {
	tracker := activity.New(activity.WithLogger(logger))
	settings := editor.NewSettings(cfg.Feedback)

	dispatcher, err := newDispatcher(cfg, logger)
	if err != nil {
		return err
	}
	sender := feedback.NewSwitch(dispatcher, logger)
	defer func() {
		sender.Wait()
		stats := sender.Stats()
		logger.Debug("feedback submissions drained", "sent", stats.Sent, "failed", stats.Failed, "dropped", stats.Dropped)
	}()

	opts := []editor.HandlerOption{
		editor.WithVersion(GetVersion()),
		editor.WithHandlerLogger(logger),
	}
	if cfg.Session.MinPluginVersion != "" {
		minVersion, err := semver.NewVersion(cfg.Session.MinPluginVersion)
		if err != nil {
			return errors.Wrap(err, "invalid session.min_plugin_version")
		}
		opts = append(opts, editor.WithMinPluginVersion(minVersion))
	}
	handler := editor.NewHandler(tracker, sender, settings, opts...)

	// Config callbacks run on the watcher goroutine, one at a time.
	current := newEndpointKey(cfg)
	bootstrap.WatchConfig(logger, func(next *config.Config) {
		// Install the new dispatcher before the gate can pass events for it.
		if key := newEndpointKey(next); key != current {
			d, err := newDispatcher(next, logger)
			if err != nil {
				logger.Warn("keeping previous feedback endpoint", "error", err)
				return
			}
			sender.Replace(d)
			current = key
			logger.Info("feedback endpoint updated", "base_url", next.Feedback.BaseURL)
		}
		settings.Update(next.Feedback)
	})

	logger.Info("editor session started", "version", GetVersion(), "feedback_enabled", cfg.Feedback.Enabled)
	err = editor.Serve(ctx, in, out, handler)
	if errors.Is(err, context.Canceled) {
		logger.Info("editor session interrupted")
		return nil
	}
	return err
}

// endpointKey holds the settings a Dispatcher is built from. A change to any
// of them replaces the session's dispatcher.
type endpointKey struct {
	baseURL   string
	rateLimit float64
	burst     int
	timeout   time.Duration
	token     string
	clientID  string
}

func newEndpointKey(cfg *config.Config) endpointKey {
	return endpointKey{
		baseURL:   strings.TrimSpace(cfg.Feedback.BaseURL),
		rateLimit: cfg.Feedback.RateLimit,
		burst:     cfg.Feedback.Burst,
		timeout:   cfg.Feedback.Timeout,
		token:     cfg.Auth.Token,
		clientID:  cfg.Auth.ClientID,
	}
}

// newDispatcher builds the feedback submission pipeline. It returns nil when
// no base URL is configured; the tracker suppresses every event in that case.
func newDispatcher(cfg *config.Config, logger *slog.Logger) (*feedback.Dispatcher, error) {
	if !cfg.Feedback.HasEndpoint() {
		return nil, nil
	}

	provider := newAuthProvider(cfg, logger)
	client, err := feedback.NewClient(cfg.Feedback.BaseURL, provider, cfg.Feedback.Timeout, logger)
	if err != nil {
		return nil, err
	}
	return feedback.NewDispatcher(client, cfg.Feedback.RateLimit, cfg.Feedback.Burst, cfg.Feedback.Timeout, logger), nil
}

func newAuthProvider(cfg *config.Config, logger *slog.Logger) *auth.Provider {
	return auth.NewProvider(
		cfg.Auth.Token,
		auth.NewTokenCache(cfg.Feedback.BaseURL, cfg.Auth.TokenCachePath),
		auth.OAuthConfig{
			ClientID: cfg.Auth.ClientID,
			Scopes:   cfg.Auth.Scopes,
			BaseURL:  cfg.Feedback.BaseURL,
		},
		logger,
	)
}
