// Package auth validates inbound bearer tokens and obtains outbound ones.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// DefaultRefreshInterval is how often the JWKS is re-fetched to pick up key
// rotation.
const DefaultRefreshInterval = 15 * time.Minute

// TokenValidator validates a raw bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

type JWTValidatorConfig struct {
	JWKSURL         string
	Issuer          string
	Audience        string
	RefreshInterval time.Duration
}

type JWTValidator struct {
	jwksURL  string
	cache    *jwk.Cache
	issuer   string
	audience string
	cancel   context.CancelFunc
}

// NewJWTValidator registers the JWKS URL with an auto-refreshing cache and
// performs the first fetch so misconfiguration fails at startup.
func NewJWTValidator(ctx context.Context, cfg JWTValidatorConfig) (*JWTValidator, error) {
	if cfg.JWKSURL == "" {
		return nil, fmt.Errorf("jwks url is required")
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}

	cacheCtx, cancel := context.WithCancel(context.Background())
	cache := jwk.NewCache(cacheCtx)

	if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(cfg.RefreshInterval)); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
	}

	if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", cfg.JWKSURL, err)
	}

	return &JWTValidator{
		jwksURL:  cfg.JWKSURL,
		cache:    cache,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		cancel:   cancel,
	}, nil
}

// ValidateToken checks the signature against the cached JWKS, expiry, issuer
// and audience. Errors wrap ErrTokenExpired or ErrInvalidToken.
func (v *JWTValidator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	keyset, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	opts := []jwt.ParseOption{
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return claimsFromToken(ctx, token), nil
}

// Close stops the JWKS refresh goroutine.
func (v *JWTValidator) Close() {
	if v.cancel != nil {
		v.cancel()
	}
}

func claimsFromToken(ctx context.Context, token jwt.Token) *Claims {
	claims := &Claims{
		Subject: token.Subject(),
		Issuer:  token.Issuer(),
		Custom:  make(map[string]interface{}),
	}

	if email, ok := token.Get("email"); ok {
		if s, ok := email.(string); ok {
			claims.Email = s
		}
	}

	for _, key := range []string{"cid", "client_id", "azp"} {
		if v, ok := token.Get(key); ok {
			if s, ok := v.(string); ok && s != "" {
				claims.ClientID = s
				break
			}
		}
	}

	// Okta puts scopes in "scp" as a list; other issuers use a
	// space-separated "scope" string.
	if v, ok := token.Get("scope"); ok {
		claims.Scopes = append(claims.Scopes, scopeValues(v)...)
	}
	if v, ok := token.Get("scp"); ok {
		claims.Scopes = append(claims.Scopes, scopeValues(v)...)
	}

	for iter := token.Iterate(ctx); iter.Next(ctx); {
		pair := iter.Pair()
		key, ok := pair.Key.(string)
		if !ok {
			continue
		}
		switch key {
		case "sub", "iss", "aud", "exp", "iat", "nbf", "jti", "email", "scope", "scp":
			continue
		}
		claims.Custom[key] = pair.Value
	}

	return claims
}

func scopeValues(v interface{}) []string {
	switch s := v.(type) {
	case string:
		return strings.Fields(s)
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok && str != "" {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
