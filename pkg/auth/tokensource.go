package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenSource supplies bearer tokens for outbound agent calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	// Refresh discards any cached token and fetches a new one.
	Refresh(ctx context.Context) (string, error)
}

type ClientCredentialsConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	HTTPClient   *http.Client
}

// ClientCredentials fetches tokens with the OAuth2 client credentials grant
// and reuses them until they are close to expiry.
type ClientCredentials struct {
	cfg        clientcredentials.Config
	httpClient *http.Client

	mu      sync.Mutex
	current *oauth2.Token
}

func NewClientCredentials(cfg ClientCredentialsConfig) (*ClientCredentials, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("token url is required")
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{DefaultRequiredScope}
	}

	return &ClientCredentials{
		cfg: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       scopes,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		httpClient: cfg.HTTPClient,
	}, nil
}

func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.Valid() {
		return c.current.AccessToken, nil
	}
	return c.fetchLocked(ctx)
}

func (c *ClientCredentials) Refresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = nil
	return c.fetchLocked(ctx)
}

func (c *ClientCredentials) fetchLocked(ctx context.Context) (string, error) {
	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}

	tok, err := c.cfg.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to obtain access token: %w", err)
	}
	c.current = tok
	return tok.AccessToken, nil
}

// StaticToken is a TokenSource for a pre-issued bearer token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

func (s StaticToken) Refresh(context.Context) (string, error) {
	return string(s), nil
}
