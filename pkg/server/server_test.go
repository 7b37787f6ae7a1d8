// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	a2asdk "github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/orgrouter/pkg/a2a"
	"github.com/kadirpekel/orgrouter/pkg/auth"
	"github.com/kadirpekel/orgrouter/pkg/config"
	"github.com/kadirpekel/orgrouter/pkg/discovery"
	"github.com/kadirpekel/orgrouter/pkg/observability"
	"github.com/kadirpekel/orgrouter/pkg/ratelimit"
)

type echoHandler struct {
	caller string
}

func (h *echoHandler) Handle(ctx context.Context, raw []byte) []byte {
	h.caller = auth.ClaimsFromContext(ctx).Caller()
	return []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"result":{"echo":%d}}`, len(raw)))
}

type staticValidator struct{}

func (staticValidator) ValidateToken(_ context.Context, token string) (*auth.Claims, error) {
	switch token {
	case "good":
		return &auth.Claims{Subject: "ui-client", Scopes: []string{"agent.access"}}, nil
	case "noscope":
		return &auth.Claims{Subject: "other"}, nil
	default:
		return nil, auth.ErrInvalidToken
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Port = 9090
	require.NoError(t, cfg.Validate())
	return cfg
}

func agentServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"HR Agent","url":"http://hr/","version":"1","skills":[]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, cfg *config.Config, registry *discovery.Registry, opts ...Option) (*Server, *echoHandler) {
	t.Helper()
	if registry == nil {
		registry = discovery.NewRegistry(nil)
	}
	h := &echoHandler{}
	return New(&cfg.Server, h, registry, NewAdminCard(cfg), opts...), h
}

func do(t *testing.T, handler http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t), nil)
	rec := do(t, s.Handler(), http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAgentCard_ServedOnBothPaths(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t), nil)
	handler := s.Handler()

	for _, path := range []string{"/.well-known/agent.json", "/.well-known/agent-card.json"} {
		t.Run(path, func(t *testing.T) {
			rec := do(t, handler, http.MethodGet, path, "", "")
			require.Equal(t, http.StatusOK, rec.Code)

			var card a2a.AgentCard
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
			assert.Equal(t, config.DefaultName, card.Name)
			assert.Equal(t, "http://localhost:9090/", card.URL)
			require.Len(t, card.Skills, 1)
			assert.Equal(t, AdminSkillID, card.Skills[0].ID)
			assert.Equal(t, []string{"Admin", "Router", "Supervisor"}, card.Skills[0].Tags)
			assert.Empty(t, card.SecuritySchemes)
		})
	}
}

func TestAdminCard_DeclaresBearerWhenAuthEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Auth = &config.AuthConfig{Enabled: true, Domain: "example.okta.com"}
	cfg.SetDefaults()

	card := NewAdminCard(cfg)
	assert.Contains(t, card.SecuritySchemes, a2asdk.SecuritySchemeName("BearerAuth"))
	assert.Len(t, card.Security, 1)
}

func TestJSONRPC_DelegatesToHandler(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t), nil)
	handler := s.Handler()

	for _, path := range []string{"/", "/a2a"} {
		rec := do(t, handler, http.MethodPost, path, `{"x":1}`, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{"echo":7}}`, rec.Body.String())
	}
}

func TestReady(t *testing.T) {
	t.Run("no cards", func(t *testing.T) {
		registry := discovery.NewRegistry(nil, discovery.Agent{Name: "HR", BaseURL: "http://127.0.0.1:1/"})
		s, _ := newTestServer(t, testConfig(t), registry)

		rec := do(t, s.Handler(), http.MethodGet, "/ready", "", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"unavailable"`)
	})

	t.Run("one card", func(t *testing.T) {
		hr := agentServer(t)
		registry := discovery.NewRegistry(nil,
			discovery.Agent{Name: "HR", BaseURL: hr.URL + "/"},
			discovery.Agent{Name: "FINANCE", BaseURL: "http://127.0.0.1:1/"},
		)
		s, _ := newTestServer(t, testConfig(t), registry)

		rec := do(t, s.Handler(), http.MethodGet, "/ready", "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Status string        `json:"status"`
			Agents []agentStatus `json:"agents"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ready", body.Status)
		require.Len(t, body.Agents, 2)
		assert.True(t, body.Agents[0].Available)
		assert.Equal(t, "HR Agent", body.Agents[0].Card)
		assert.False(t, body.Agents[1].Available)
		assert.NotEmpty(t, body.Agents[1].Error)
	})
}

func TestAuth(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Auth = &config.AuthConfig{Enabled: true, Domain: "example.okta.com", ExcludedPaths: []string{"/status"}}
	cfg.SetDefaults()
	s, h := newTestServer(t, cfg, nil, WithAuthValidator(staticValidator{}))
	handler := s.Handler()

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"health is public", http.MethodGet, "/health", "", http.StatusOK},
		{"card is public", http.MethodGet, "/.well-known/agent.json", "", http.StatusOK},
		{"configured exclusion", http.MethodGet, "/status", "", http.StatusNotFound},
		{"missing token", http.MethodPost, "/", "", http.StatusUnauthorized},
		{"invalid token", http.MethodPost, "/", "bad", http.StatusUnauthorized},
		{"missing scope", http.MethodPost, "/", "noscope", http.StatusForbidden},
		{"valid token", http.MethodPost, "/", "good", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, handler, tt.method, tt.path, `{}`, tt.token)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	assert.Equal(t, "ui-client", h.caller)
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: 1, Burst: 1})
	s, _ := newTestServer(t, testConfig(t), nil, WithRateLimiter(limiter))
	handler := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, handler, http.MethodPost, "/", `{}`, "").Code)

	rec := do(t, handler, http.MethodPost, "/", `{}`, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(t, handler, http.MethodGet, "/health", "", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	obs := observability.NewManager(observability.Config{
		Metrics: observability.MetricsConfig{Enabled: true},
	})
	require.NoError(t, obs.Initialize(context.Background()))

	s, _ := newTestServer(t, testConfig(t), nil, WithObservability(obs))
	handler := s.Handler()

	do(t, handler, http.MethodGet, "/health", "", "")
	rec := do(t, handler, http.MethodGet, obs.MetricsPath(), "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestShutdownWithoutStart(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t), nil)
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestStart_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	s, _ := newTestServer(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	assert.NoError(t, <-done)
}

type slowHandler struct {
	delay time.Duration
}

func (h slowHandler) Handle(ctx context.Context, _ []byte) []byte {
	select {
	case <-time.After(h.delay):
	case <-ctx.Done():
	}
	return []byte(`{"jsonrpc":"2.0","id":1,"result":{"text":"The HR agent timed out."}}`)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestStart_AnswersQueriesThatRunPastWriteTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.Server.RequestTimeout = 150 * time.Millisecond
	cfg.Server.WriteTimeout = 120 * time.Millisecond

	s := New(&cfg.Server, slowHandler{delay: 140 * time.Millisecond}, discovery.NewRegistry(nil), NewAdminCard(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	base := "http://" + cfg.Server.Address()
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(base+"/", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"message/send","params":{}}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "timed out")
}
