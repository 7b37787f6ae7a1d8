package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	testIssuer   = "https://example.okta.com/oauth2/default"
	testAudience = "api://a2a-agents"
)

func generateRSAKeyPair(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	return privateKey
}

func createJWKS(t testing.TB, publicKey *rsa.PublicKey) jwk.Set {
	t.Helper()
	key, err := jwk.FromRaw(publicKey)
	if err != nil {
		t.Fatalf("Failed to create JWK: %v", err)
	}
	_ = key.Set(jwk.KeyIDKey, "test-key-id")
	_ = key.Set(jwk.AlgorithmKey, jwa.RS256)

	keyset := jwk.NewSet()
	if err := keyset.AddKey(key); err != nil {
		t.Fatalf("Failed to add key: %v", err)
	}
	return keyset
}

func createTestJWT(t testing.TB, privateKey *rsa.PrivateKey, issuer, audience, subject string, ttl time.Duration, claims map[string]interface{}) string {
	t.Helper()
	token := jwt.New()
	_ = token.Set(jwt.IssuerKey, issuer)
	_ = token.Set(jwt.AudienceKey, audience)
	_ = token.Set(jwt.SubjectKey, subject)
	_ = token.Set(jwt.IssuedAtKey, time.Now().Add(-2*time.Minute))
	_ = token.Set(jwt.ExpirationKey, time.Now().Add(ttl))
	for k, v := range claims {
		if err := token.Set(k, v); err != nil {
			t.Fatalf("Failed to set claim %s: %v", k, err)
		}
	}

	key, err := jwk.FromRaw(privateKey)
	if err != nil {
		t.Fatalf("Failed to create signing key: %v", err)
	}
	_ = key.Set(jwk.KeyIDKey, "test-key-id")

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, key))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return string(signed)
}

func newJWKSServer(t testing.TB, keyset jwk.Set) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/keys" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(keyset)
	}))
	t.Cleanup(server.Close)
	return server
}

func setupTestValidator(t testing.TB) (*JWTValidator, *rsa.PrivateKey) {
	t.Helper()
	privateKey := generateRSAKeyPair(t)
	server := newJWKSServer(t, createJWKS(t, &privateKey.PublicKey))

	validator, err := NewJWTValidator(context.Background(), JWTValidatorConfig{
		JWKSURL:  server.URL + "/v1/keys",
		Issuer:   testIssuer,
		Audience: testAudience,
	})
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}
	t.Cleanup(validator.Close)
	return validator, privateKey
}
