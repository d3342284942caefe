// Package auth supplies bearer credentials for the suggestion service.
//
// Credential resolution order:
//  1. QUILL_AUTH_TOKEN environment variable
//  2. auth.token from config
//  3. Cached OAuth token (keychain or file), refreshed when expired
package auth

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/oauth2"

	quillerrors "thoreinstein.com/quill/pkg/errors"
)

// TokenSource supplies a bearer credential on demand.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Compile-time interface check
var _ TokenSource = (*Provider)(nil)

// Provider resolves bearer tokens from the environment, config or token cache.
type Provider struct {
	static string
	cache  TokenCache
	oauth  OAuthConfig
	logger *slog.Logger

	mu sync.Mutex
}

// NewProvider creates a Provider. staticToken is the configured auth.token and
// is overridden by QUILL_AUTH_TOKEN.
func NewProvider(staticToken string, cache TokenCache, oauthCfg OAuthConfig, logger *slog.Logger) *Provider {
	if env := os.Getenv("QUILL_AUTH_TOKEN"); env != "" {
		staticToken = env
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		static: staticToken,
		cache:  cache,
		oauth:  oauthCfg,
		logger: logger,
	}
}

// Token returns a bearer token, refreshing and re-caching an expired OAuth
// token when a refresh token is available.
func (p *Provider) Token(ctx context.Context) (string, error) {
	if p.static != "" {
		return p.static, nil
	}
	if p.cache == nil {
		return "", quillerrors.NewAuthError("Token", "no credentials configured; run 'quill login'")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cached, err := p.cache.Get()
	if err != nil {
		return "", err
	}
	if cached == nil {
		return "", quillerrors.NewAuthError("Token", "not logged in; run 'quill login'")
	}
	if cached.Valid() {
		return cached.AccessToken, nil
	}
	if cached.RefreshToken == "" {
		return "", quillerrors.NewAuthError("Token", "session expired; run 'quill login'")
	}

	p.logger.Debug("refreshing expired access token")
	fresh, err := p.oauth.oauth2Config().TokenSource(ctx, cached).Token()
	if err != nil {
		return "", quillerrors.NewAuthErrorWithCause("Token", "failed to refresh access token", err)
	}
	if err := p.cache.Set(fresh); err != nil {
		// The refreshed token is still usable for this request
		p.logger.Warn("failed to cache refreshed token", "error", err)
	}
	return fresh.AccessToken, nil
}

// Logout removes any cached OAuth token.
func (p *Provider) Logout() error {
	if p.cache == nil {
		return nil
	}
	return p.cache.Clear()
}

// Login runs the device flow and stores the resulting token.
func (p *Provider) Login(ctx context.Context, out io.Writer) error {
	if p.cache == nil {
		return quillerrors.NewAuthError("Login", "no token cache available")
	}
	token, err := DeviceAuth(ctx, p.oauth, out)
	if err != nil {
		return err
	}
	return p.cache.Set(token)
}

// StaticToken reports whether a fixed token is in use, in which case login is unnecessary.
func (p *Provider) StaticToken() bool {
	return p.static != ""
}

// CachedToken returns the cached OAuth token without refreshing it.
func (p *Provider) CachedToken() (*oauth2.Token, error) {
	if p.cache == nil {
		return nil, nil
	}
	return p.cache.Get()
}
