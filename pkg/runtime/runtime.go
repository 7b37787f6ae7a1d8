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

// Package runtime assembles the router from configuration: the classifier
// model, card registry, outbound auth, audit store, rate limiter and
// observability, all behind one Dispatcher and one HTTP server.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kadirpekel/orgrouter/pkg/a2a"
	"github.com/kadirpekel/orgrouter/pkg/audit"
	"github.com/kadirpekel/orgrouter/pkg/auth"
	"github.com/kadirpekel/orgrouter/pkg/config"
	"github.com/kadirpekel/orgrouter/pkg/discovery"
	"github.com/kadirpekel/orgrouter/pkg/dispatcher"
	"github.com/kadirpekel/orgrouter/pkg/logger"
	"github.com/kadirpekel/orgrouter/pkg/model"
	"github.com/kadirpekel/orgrouter/pkg/observability"
	"github.com/kadirpekel/orgrouter/pkg/ratelimit"
	"github.com/kadirpekel/orgrouter/pkg/routing"
	"github.com/kadirpekel/orgrouter/pkg/server"
)

type Runtime struct {
	config *config.Config

	llm           model.LLM
	classifier    routing.Classifier
	llmClassifier *routing.LLMClassifier
	registry      *discovery.Registry
	dispatcher    *dispatcher.Dispatcher
	card          *a2a.AgentCard

	validator     *auth.JWTValidator
	tokens        auth.TokenSource
	audit         audit.Store
	dbPool        *config.DBPool
	limiter       *ratelimit.Limiter
	observability *observability.Manager
}

type Option func(*options)

type options struct {
	llm        model.LLM
	llmFactory func(context.Context, *config.LLMConfig) (model.LLM, error)
	skipAuth   bool
}

// WithLLM uses llm instead of building one from the config.
func WithLLM(llm model.LLM) Option {
	return func(o *options) {
		o.llm = llm
	}
}

func WithLLMFactory(fn func(context.Context, *config.LLMConfig) (model.LLM, error)) Option {
	return func(o *options) {
		o.llmFactory = fn
	}
}

// WithoutInboundAuth skips the JWKS fetch. Used by commands that never
// serve HTTP.
func WithoutInboundAuth() Option {
	return func(o *options) {
		o.skipAuth = true
	}
}

func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	o := &options{llmFactory: DefaultLLMFactory}
	for _, opt := range opts {
		opt(o)
	}

	r := &Runtime{config: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = r.Close()
		}
	}()

	r.observability = observability.NewManager(cfg.Observability)
	if err := r.observability.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	metrics := r.observability.Metrics()

	llm := o.llm
	if llm == nil && cfg.LLM.IsEnabled() {
		var err error
		llm, err = o.llmFactory(ctx, &cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s model: %w", cfg.LLM.Provider, err)
		}
	}
	r.llm = WrapBreaker(llm, &cfg.LLM, metrics)
	r.classifier, r.llmClassifier = NewClassifier(r.llm, &cfg.Routing)
	if r.llm == nil {
		slog.Info("No LLM configured, routing with keywords only")
	} else {
		slog.Info("Classifier model ready", "provider", r.llm.Provider(), "model", r.llm.Name())
	}

	hc, err := NewAgentHTTPClient(&cfg.Agents)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent HTTP client: %w", err)
	}
	r.registry = NewRegistry(&cfg.Agents, hc)

	r.tokens, err = auth.NewTokenSourceFromConfig(&cfg.Agents.Auth, hc)
	if err != nil {
		return nil, err
	}

	if !o.skipAuth {
		r.validator, err = auth.NewValidatorFromConfig(ctx, cfg.Server.Auth)
		if err != nil {
			return nil, err
		}
	}

	r.dbPool = config.NewDBPool()
	r.audit, err = audit.NewStoreFromConfig(ctx, cfg, r.dbPool)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit store: %w", err)
	}

	r.limiter = ratelimit.NewLimiterFromConfig(cfg.RateLimiting)
	r.card = server.NewAdminCard(cfg)

	dispatchOpts := []dispatcher.Option{
		dispatcher.WithSender(a2a.NewClient(a2a.WithHTTPClient(hc), a2a.WithCallTimeout(cfg.Agents.CallTimeout))),
		dispatcher.WithAdminCard(r.card),
		dispatcher.WithRequestTimeout(cfg.Server.RequestTimeout),
		dispatcher.WithMetrics(metrics),
		dispatcher.WithTracer(r.observability.Tracer()),
	}
	if r.tokens != nil {
		dispatchOpts = append(dispatchOpts, dispatcher.WithTokenSource(r.tokens))
	}
	if r.audit != nil {
		dispatchOpts = append(dispatchOpts, dispatcher.WithAuditStore(r.audit))
	}
	r.dispatcher = dispatcher.New(r.registry, r.classifier, dispatchOpts...)

	ok = true
	return r, nil
}

func (r *Runtime) Config() *config.Config {
	return r.config
}

func (r *Runtime) Dispatcher() *dispatcher.Dispatcher {
	return r.dispatcher
}

func (r *Runtime) Registry() *discovery.Registry {
	return r.registry
}

func (r *Runtime) Classifier() routing.Classifier {
	return r.classifier
}

func (r *Runtime) Card() *a2a.AgentCard {
	return r.card
}

func (r *Runtime) Audit() audit.Store {
	return r.audit
}

// Server builds the HTTP server for this runtime.
func (r *Runtime) Server() *server.Server {
	opts := []server.Option{server.WithObservability(r.observability)}
	if r.validator != nil {
		opts = append(opts, server.WithAuthValidator(r.validator))
	}
	if r.limiter != nil {
		var excluded []string
		if r.config.RateLimiting != nil {
			excluded = r.config.RateLimiting.ExcludedPaths
		}
		opts = append(opts, server.WithRateLimiter(r.limiter, excluded...))
	}
	return server.New(&r.config.Server, r.dispatcher, r.registry, r.card, opts...)
}

// Reload applies the parts of cfg that can change without a restart:
// downstream endpoints, the classifier timeout, the request deadline and
// the log level. Everything else needs a restart.
func (r *Runtime) Reload(cfg *config.Config) {
	r.registry.SetAgents(DownstreamAgents(&cfg.Agents)...)

	if r.llmClassifier != nil {
		r.llmClassifier.SetTimeout(cfg.Routing.ClassifierTimeout)
	}
	r.dispatcher.SetRequestTimeout(r.reloadableRequestTimeout(cfg.Server.RequestTimeout))

	if level, err := logger.ParseLevel(cfg.Logger.Level); err == nil {
		logger.SetLevel(level)
	}

	slog.Info("Runtime reloaded",
		"hr", cfg.Agents.HR.BaseURL(),
		"finance", cfg.Agents.Finance.BaseURL(),
		"classifier_timeout", cfg.Routing.ClassifierTimeout,
		"log_level", cfg.Logger.Level,
	)
}

// reloadableRequestTimeout caps a reloaded request deadline so it still ends
// before the running server's write deadline, which only a restart changes.
func (r *Runtime) reloadableRequestTimeout(requested time.Duration) time.Duration {
	limit := r.config.Server.EffectiveWriteTimeout() - config.WriteTimeoutMargin
	if requested > limit {
		slog.Warn("Reloaded request_timeout exceeds the server write deadline; restart to apply it",
			"requested", requested, "applied", limit)
		return limit
	}
	return requested
}

func (r *Runtime) Close() error {
	var errs []error

	if r.llm != nil {
		if err := r.llm.Close(); err != nil {
			errs = append(errs, fmt.Errorf("llm: %w", err))
		}
	}
	if r.validator != nil {
		r.validator.Close()
	}
	if r.audit != nil {
		if err := r.audit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("audit store: %w", err))
		}
	}
	if r.dbPool != nil {
		if err := r.dbPool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database pool: %w", err))
		}
	}
	if r.observability != nil {
		if err := r.observability.Shutdown(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("observability: %w", err))
		}
	}

	return errors.Join(errs...)
}
