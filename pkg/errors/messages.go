package errors

import (
	"fmt"
	"strings"
)

// FormatUserError returns a user-friendly error message with actionable guidance.
// It examines the error chain and provides context-appropriate help text.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var configErr *ConfigError
	if As(err, &configErr) {
		return formatConfigError(configErr)
	}

	var fbErr *FeedbackError
	if As(err, &fbErr) {
		return formatFeedbackError(fbErr)
	}

	var authErr *AuthError
	if As(err, &authErr) {
		return formatAuthError(authErr)
	}

	// Default: return the error message as-is
	return err.Error()
}

// formatConfigError formats a ConfigError with actionable guidance.
func formatConfigError(err *ConfigError) string {
	var b strings.Builder

	if err.Field != "" {
		fmt.Fprintf(&b, "Configuration error in '%s': %s\n", err.Field, err.Message)
	} else {
		fmt.Fprintf(&b, "Configuration error: %s\n", err.Message)
	}

	b.WriteString("\nTo fix this:\n")
	b.WriteString("  • Check your config file: ~/.config/quill/config.toml\n")
	b.WriteString("  • Run 'quill config show' to see the effective settings\n")

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatFeedbackError formats a FeedbackError with guidance based on status code.
func formatFeedbackError(err *FeedbackError) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Feedback error during %s: %s\n", err.Operation, err.Message)

	switch err.StatusCode {
	case 401:
		b.WriteString("\nAuthentication failed. To fix this:\n")
		b.WriteString("  • Run 'quill login' to refresh your credentials\n")
		b.WriteString("  • Or set the QUILL_AUTH_TOKEN environment variable\n")

	case 403:
		b.WriteString("\nPermission denied. To fix this:\n")
		b.WriteString("  • Ensure your account has access to the suggestion service\n")

	case 404:
		b.WriteString("\nEndpoint not found. To fix this:\n")
		b.WriteString("  • Verify feedback.base_url points at the suggestion service\n")

	case 429:
		b.WriteString("\nRate limit exceeded. Lower feedback.rate_limit or wait a few minutes.\n")

	case 500, 502, 503, 504:
		b.WriteString("\nServer error. Wait a few moments; later events will be sent normally.\n")
	}

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

func formatAuthError(err *AuthError) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Authentication error during %s: %s\n", err.Operation, err.Message)
	b.WriteString("\nTo fix this:\n")
	b.WriteString("  • Run 'quill login' to sign in again\n")
	b.WriteString("  • Or set the QUILL_AUTH_TOKEN environment variable\n")

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}
