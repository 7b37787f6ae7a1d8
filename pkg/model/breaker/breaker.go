// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package breaker wraps a model.LLM with a circuit breaker so a failing
// provider is skipped quickly instead of costing every request a timeout.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kadirpekel/orgrouter/pkg/model"
)

const (
	defaultMaxFailures uint32 = 5
	defaultOpenTimeout        = 30 * time.Second
	defaultInterval           = 60 * time.Second
)

type Config struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before a trial call is let through.
	OpenTimeout time.Duration
	// Interval clears failure counts while closed. Zero keeps the default.
	Interval time.Duration

	// OnStateChange, when set, is called after every transition.
	OnStateChange func(name string, from, to gobreaker.State)
}

// ErrOpen is returned while the circuit is open or saturated half-open.
var ErrOpen = errors.New("circuit open")

// LLM is a model.LLM guarded by a circuit breaker.
type LLM struct {
	inner   model.LLM
	breaker *gobreaker.CircuitBreaker[*model.Response]
}

func Wrap(inner model.LLM, cfg Config) *LLM {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = defaultOpenTimeout
	}
	if cfg.Interval == 0 {
		cfg.Interval = defaultInterval
	}

	cb := gobreaker.NewCircuitBreaker[*model.Response](gobreaker.Settings{
		Name:        "llm:" + string(inner.Provider()) + ":" + inner.Name(),
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
		// A caller hanging up says nothing about the provider's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &LLM{inner: inner, breaker: cb}
}

func (l *LLM) Name() string {
	return l.inner.Name()
}

func (l *LLM) Provider() model.Provider {
	return l.inner.Provider()
}

func (l *LLM) Close() error {
	return l.inner.Close()
}

func (l *LLM) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	resp, err := l.breaker.Execute(func() (*model.Response, error) {
		return l.inner.Generate(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s %q: %w: %w", l.inner.Provider(), l.inner.Name(), ErrOpen, err)
	}
	return resp, err
}

// State returns the current breaker state for monitoring.
func (l *LLM) State() gobreaker.State {
	return l.breaker.State()
}

var _ model.LLM = (*LLM)(nil)
