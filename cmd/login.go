package cmd

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"thoreinstein.com/quill/pkg/auth"
	quillerrors "thoreinstein.com/quill/pkg/errors"
)

var loginForce bool

// isInteractive reports whether stdin is a terminal. Overridden in tests.
var isInteractive = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// loginCmd authenticates with the suggestion service using the device flow.
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with the suggestion service",
	Long: `Authenticate with the suggestion service using the OAuth device flow.

A one-time code is printed and the verification page is opened in a browser.
The resulting token is stored in the system keychain, or in
auth.token_cache_path when no keychain is available.

Tokens are kept per service host. Login is skipped while a usable token for
feedback.base_url is cached; --force starts a new login anyway.

Login is not needed when auth.token or QUILL_AUTH_TOKEN is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}
		out := cmd.OutOrStdout()

		provider := newAuthProvider(cfg, newLogger(cmd.ErrOrStderr()))
		if provider.StaticToken() {
			fmt.Fprintln(out, "A static token is configured; login is not needed.")
			return nil
		}
		if !cfg.Feedback.HasEndpoint() {
			err := quillerrors.NewConfigError("feedback.base_url", "required for login")
			fmt.Fprintln(cmd.ErrOrStderr(), quillerrors.FormatUserError(err))
			return err
		}
		if !loginForce {
			cached, err := provider.CachedToken()
			if err != nil {
				// An unreadable cache is replaced by a fresh login.
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
			} else if cached != nil && (cached.Valid() || cached.RefreshToken != "") {
				fmt.Fprintf(out, "Already logged in to %s. Use --force to log in again.\n", auth.ServiceKey(cfg.Feedback.BaseURL))
				return nil
			}
		}
		if !isInteractive() {
			return quillerrors.NewAuthError("Login", "device login requires an interactive terminal; set QUILL_AUTH_TOKEN instead")
		}

		if err := provider.Login(cmd.Context(), out); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), quillerrors.FormatUserError(err))
			return err
		}
		fmt.Fprintln(out, "Logged in.")
		return nil
	},
}

// logoutCmd removes the cached token.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the cached suggestion service token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}

		provider := newAuthProvider(cfg, newLogger(cmd.ErrOrStderr()))
		if err := provider.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		if provider.StaticToken() {
			fmt.Fprintln(cmd.OutOrStdout(), "Note: a static token from auth.token or QUILL_AUTH_TOKEN is still in use.")
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().BoolVar(&loginForce, "force", false, "log in again even when a usable token is cached")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
