package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTValidator(t *testing.T) {
	privateKey := generateRSAKeyPair(t)
	server := newJWKSServer(t, createJWKS(t, &privateKey.PublicKey))

	tests := []struct {
		name      string
		jwksURL   string
		wantError bool
	}{
		{name: "valid_configuration", jwksURL: server.URL + "/v1/keys"},
		{name: "jwks_not_found", jwksURL: server.URL + "/missing", wantError: true},
		{name: "empty_jwks_url", jwksURL: "", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewJWTValidator(context.Background(), JWTValidatorConfig{
				JWKSURL:  tt.jwksURL,
				Issuer:   testIssuer,
				Audience: testAudience,
			})
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			v.Close()
		})
	}
}

func TestJWTValidator_ValidateToken(t *testing.T) {
	validator, privateKey := setupTestValidator(t)
	ctx := context.Background()

	t.Run("okta_scp_list", func(t *testing.T) {
		token := createTestJWT(t, privateKey, testIssuer, testAudience, "0oa-admin", time.Hour, map[string]interface{}{
			"scp": []string{"agent.access", "openid"},
			"cid": "0oa-admin-client",
		})

		claims, err := validator.ValidateToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "0oa-admin", claims.Subject)
		assert.Equal(t, "0oa-admin-client", claims.ClientID)
		assert.True(t, claims.HasScope("agent.access"))
		assert.True(t, claims.HasScope("openid"))
		assert.Equal(t, "0oa-admin", claims.Caller())
	})

	t.Run("space_separated_scope", func(t *testing.T) {
		token := createTestJWT(t, privateKey, testIssuer, testAudience, "svc", time.Hour, map[string]interface{}{
			"scope": "profile agent.access",
			"team":  "platform",
		})

		claims, err := validator.ValidateToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, []string{"profile", "agent.access"}, claims.Scopes)
		assert.Equal(t, "platform", claims.GetStringClaim("team"))
	})

	t.Run("expired", func(t *testing.T) {
		token := createTestJWT(t, privateKey, testIssuer, testAudience, "svc", -time.Minute, nil)

		_, err := validator.ValidateToken(ctx, token)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTokenExpired))
	})

	t.Run("wrong_issuer", func(t *testing.T) {
		token := createTestJWT(t, privateKey, "https://evil.example.com", testAudience, "svc", time.Hour, nil)

		_, err := validator.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong_audience", func(t *testing.T) {
		token := createTestJWT(t, privateKey, testIssuer, "api://other", "svc", time.Hour, nil)

		_, err := validator.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("signed_with_unknown_key", func(t *testing.T) {
		other := generateRSAKeyPair(t)
		token := createTestJWT(t, other, testIssuer, testAudience, "svc", time.Hour, nil)

		_, err := validator.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := validator.ValidateToken(ctx, "not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestScopeValues(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, scopeValues("a  b"))
	assert.Equal(t, []string{"a", "b"}, scopeValues([]interface{}{"a", 1, "b", ""}))
	assert.Equal(t, []string{"x"}, scopeValues([]string{"x"}))
	assert.Nil(t, scopeValues(42))
}

func TestClaims_NilSafe(t *testing.T) {
	var c *Claims
	assert.False(t, c.HasScope("agent.access"))
	assert.Empty(t, c.Caller())
	assert.Empty(t, c.GetStringClaim("team"))
	assert.Nil(t, ClaimsFromContext(context.Background()))
}
