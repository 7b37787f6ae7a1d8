package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenServer(t *testing.T, expiresIn int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		_ = r.ParseForm()
		if r.Form.Get("grant_type") != "client_credentials" || r.Form.Get("scope") != "agent.access" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_request"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":%d}`, n, expiresIn)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestClientCredentials_CachesToken(t *testing.T) {
	server, calls := newTokenServer(t, 3600)

	ts, err := NewClientCredentials(ClientCredentialsConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		TokenURL:     server.URL + "/oauth2/default/v1/token",
	})
	require.NoError(t, err)

	ctx := context.Background()
	first, err := ts.Token(ctx)
	require.NoError(t, err)
	second, err := ts.Token(ctx)
	require.NoError(t, err)

	assert.Equal(t, "tok-1", first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())

	refreshed, err := ts.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", refreshed)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientCredentials_Errors(t *testing.T) {
	_, err := NewClientCredentials(ClientCredentialsConfig{TokenURL: "http://x"})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = NewClientCredentials(ClientCredentialsConfig{ClientID: "a", ClientSecret: "b"})
	assert.Error(t, err)

	server, _ := newTokenServer(t, 3600)
	ts, err := NewClientCredentials(ClientCredentialsConfig{
		ClientID:     "client",
		ClientSecret: "wrong",
		TokenURL:     server.URL,
	})
	require.NoError(t, err)

	_, err = ts.Token(context.Background())
	assert.Error(t, err)
}

func TestStaticToken(t *testing.T) {
	var ts TokenSource = StaticToken("abc")
	tok, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
	tok, err = ts.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}
