package auth

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
)

// StaticTokenProvider returns one fixed bearer token, typically injected
// through the environment for development against a local backend.
type StaticTokenProvider struct {
	token string
}

// NewStaticTokenProvider creates a provider around a fixed token.
func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{token: token}
}

// NewEnvTokenProvider reads SCOUT_API_TOKEN. It returns nil when the
// variable is unset so the caller falls through to other providers.
func NewEnvTokenProvider() *StaticTokenProvider {
	token := os.Getenv("SCOUT_API_TOKEN")
	if token == "" {
		return nil
	}
	return &StaticTokenProvider{token: token}
}

// Token returns the configured token.
func (p *StaticTokenProvider) Token(ctx context.Context) (string, error) {
	if p.token == "" {
		return "", fmt.Errorf("no token configured")
	}
	return p.token, nil
}

// OAuthTokenProvider vends the Google access token for backend bearer
// auth, refreshing through the cached token source.
type OAuthTokenProvider struct {
	config *OAuth2Config

	mu     sync.Mutex
	source oauth2.TokenSource
}

// NewOAuthTokenProvider creates a provider backed by the OAuth2 flow.
func NewOAuthTokenProvider(config *OAuth2Config) *OAuthTokenProvider {
	return &OAuthTokenProvider{config: config}
}

// Token returns a valid access token, refreshing when expired.
func (p *OAuthTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.source == nil {
		cfg, err := p.config.LoadCredentials()
		if err != nil {
			return "", err
		}
		token, err := p.config.GetToken(ctx)
		if err != nil {
			return "", err
		}
		p.source = cfg.TokenSource(ctx, token)
	}

	token, err := p.source.Token()
	if err != nil {
		return "", fmt.Errorf("could not obtain access token: %w", err)
	}
	return token.AccessToken, nil
}
