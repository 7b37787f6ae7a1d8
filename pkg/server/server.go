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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kadirpekel/orgrouter/pkg/a2a"
	"github.com/kadirpekel/orgrouter/pkg/auth"
	"github.com/kadirpekel/orgrouter/pkg/config"
	"github.com/kadirpekel/orgrouter/pkg/discovery"
	"github.com/kadirpekel/orgrouter/pkg/observability"
	"github.com/kadirpekel/orgrouter/pkg/ratelimit"
)

const maxRequestBytes = 1 << 20

// Handler answers one raw JSON-RPC body. *dispatcher.Dispatcher implements it.
type Handler interface {
	Handle(ctx context.Context, raw []byte) []byte
}

// Server is the Admin agent's HTTP server.
type Server struct {
	cfg      *config.ServerConfig
	handler  Handler
	registry *discovery.Registry
	card     *a2a.AgentCard

	validator      auth.TokenValidator
	limiter        *ratelimit.Limiter
	limiterExclude []string
	observability  *observability.Manager

	server *http.Server
}

type Option func(*Server)

// WithAuthValidator requires a valid bearer token on every non-public path.
func WithAuthValidator(v auth.TokenValidator) Option {
	return func(s *Server) {
		s.validator = v
	}
}

// WithRateLimiter limits requests per caller. Public paths are never limited.
func WithRateLimiter(l *ratelimit.Limiter, excludedPaths ...string) Option {
	return func(s *Server) {
		s.limiter = l
		s.limiterExclude = excludedPaths
	}
}

func WithObservability(m *observability.Manager) Option {
	return func(s *Server) {
		s.observability = m
	}
}

func New(cfg *config.ServerConfig, handler Handler, registry *discovery.Registry, card *a2a.AgentCard, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		handler:  handler,
		registry: registry,
		card:     card,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the routed handler with its middleware chain:
// observability, then auth, then rate limiting.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	var (
		tracer  *observability.Tracer
		metrics *observability.Metrics
	)
	if s.observability != nil {
		tracer = s.observability.Tracer()
		metrics = s.observability.Metrics()
	}
	r.Use(observability.HTTPMiddleware(tracer, metrics))

	public := s.publicPaths()
	if s.validator != nil {
		scope := auth.DefaultRequiredScope
		if s.cfg.Auth != nil && s.cfg.Auth.RequiredScope != "" {
			scope = s.cfg.Auth.RequiredScope
		}
		r.Use(auth.Middleware(auth.MiddlewareConfig{
			Validator:     s.validator,
			RequiredScope: scope,
			PublicPaths:   public,
		}))
		slog.Info("Authentication enabled", "required_scope", scope, "public_paths", public)
	}

	if s.limiter != nil {
		r.Use(ratelimit.Middleware(ratelimit.MiddlewareConfig{
			Limiter:       s.limiter,
			ExcludedPaths: append(public, s.limiterExclude...),
			OnLimited: func(*http.Request, string) {
				metrics.RecordRateLimited()
			},
		}))
	}

	cardHandler := a2asrv.NewStaticAgentCardHandler(s.card)
	r.Method(http.MethodGet, a2a.LegacyAgentCardPath, cardHandler)
	r.Method(http.MethodGet, a2asrv.WellKnownAgentCardPath, cardHandler)

	r.Post("/", s.handleJSONRPC)
	r.Post("/a2a", s.handleJSONRPC)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	if metrics != nil {
		r.Method(http.MethodGet, s.observability.MetricsPath(), metrics.Handler())
	}

	return r
}

func (s *Server) publicPaths() []string {
	paths := append([]string(nil), auth.DefaultPublicPaths...)
	if s.observability != nil && s.observability.Metrics() != nil {
		paths = append(paths, s.observability.MetricsPath())
	}
	if s.cfg.Auth != nil {
		paths = append(paths, s.cfg.Auth.ExcludedPaths...)
	}
	return paths
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Address(),
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.EffectiveWriteTimeout(),
		IdleTimeout:       s.cfg.EffectiveWriteTimeout(),
	}

	slog.Info("HTTP server starting", "address", s.cfg.Address(), "url", s.card.URL,
		"request_timeout", s.cfg.RequestTimeout, "write_timeout", s.server.WriteTimeout)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	slog.Info("HTTP server shutting down")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	return nil
}

func (s *Server) Address() string {
	return s.cfg.Address()
}

func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
		return
	}

	start := time.Now()
	out := s.handler.Handle(r.Context(), body)
	slog.Debug("JSON-RPC request handled", "duration", time.Since(start), "bytes", len(out))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type agentStatus struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Available bool   `json:"available"`
	Card      string `json:"card,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleReady reports ready once at least one downstream card resolves.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	entries := s.registry.Cards(r.Context())

	ready := false
	agents := make([]agentStatus, 0, len(entries))
	for _, e := range entries {
		st := agentStatus{Name: e.Agent.Name, URL: e.Agent.BaseURL, Available: e.Available()}
		if e.Available() {
			ready = true
			st.Card = e.Card.Name
		} else if e.Err != nil {
			st.Error = e.Err.Error()
		}
		agents = append(agents, st)
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "agents": agents})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
