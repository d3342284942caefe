package auth

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cli/oauth"
	"golang.org/x/oauth2"

	quillerrors "thoreinstein.com/quill/pkg/errors"
)

// Endpoint paths on the suggestion service.
const (
	DeviceCodePath = "/o/device/"
	AuthorizePath  = "/o/authorize/"
	TokenPath      = "/o/token/"
)

// OAuthConfig holds OAuth configuration for device flow authentication.
type OAuthConfig struct {
	ClientID string   // OAuth client ID (required for device flow)
	Scopes   []string // OAuth scopes to request
	BaseURL  string   // Suggestion service base URL
}

func (c OAuthConfig) host() *oauth.Host {
	base := strings.TrimSuffix(c.BaseURL, "/")
	return &oauth.Host{
		DeviceCodeURL: base + DeviceCodePath,
		AuthorizeURL:  base + AuthorizePath,
		TokenURL:      base + TokenPath,
	}
}

// oauth2Config returns the x/oauth2 view of the same client, used for refresh.
func (c OAuthConfig) oauth2Config() *oauth2.Config {
	base := strings.TrimSuffix(c.BaseURL, "/")
	return &oauth2.Config{
		ClientID: c.ClientID,
		Scopes:   c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   base + AuthorizePath,
			TokenURL:  base + TokenPath,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// DeviceAuth performs OAuth device flow authentication against the suggestion
// service. It displays a code for the user to enter at the verification URL,
// then polls until authorization completes.
//
// ctx is only checked before the flow starts; cli/oauth polls on its own schedule.
func DeviceAuth(ctx context.Context, cfg OAuthConfig, stdout io.Writer) (*oauth2.Token, error) {
	if cfg.ClientID == "" {
		return nil, quillerrors.NewAuthError("DeviceAuth", "auth.client_id is required for OAuth device flow")
	}
	if cfg.BaseURL == "" {
		return nil, quillerrors.NewAuthError("DeviceAuth", "feedback.base_url is required for OAuth device flow")
	}
	if err := ctx.Err(); err != nil {
		return nil, quillerrors.NewAuthErrorWithCause("DeviceAuth", "cancelled", err)
	}

	flow := &oauth.Flow{
		Host:     cfg.host(),
		ClientID: cfg.ClientID,
		Scopes:   cfg.Scopes,
		Stdout:   stdout,
		Stdin:    os.Stdin,
		DisplayCode: func(code, verificationURL string) error {
			fmt.Fprintf(stdout, "\n! First, copy your one-time code: %s\n", code)
			fmt.Fprintf(stdout, "- Then open %s in your browser...\n", verificationURL)
			return nil
		},
	}

	token, err := flow.DeviceFlow()
	if err != nil {
		return nil, quillerrors.NewAuthErrorWithCause("DeviceAuth", "device flow failed", err)
	}

	return &oauth2.Token{
		AccessToken:  token.Token,
		TokenType:    token.Type,
		RefreshToken: token.RefreshToken,
		// The device response carries no lifetime; refresh after an hour.
		Expiry: time.Now().Add(time.Hour),
	}, nil
}
