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

package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the router's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Labels: target, source
	decisions *prometheus.CounterVec
	// Labels: llm_target, keyword_target
	disagreements *prometheus.CounterVec
	// Labels: classifier, outcome (ok|error)
	classifierDuration *prometheus.HistogramVec

	// Labels: agent, outcome (ok|auth|timeout|http_error|unreachable|cancelled)
	downstreamDuration *prometheus.HistogramVec
	downstreamCalls    *prometheus.CounterVec

	// Labels: target
	routeDuration *prometheus.HistogramVec

	// Labels: name
	breakerState *prometheus.GaugeVec

	// Labels: agent, outcome (ok|error)
	cardFetches *prometheus.CounterVec

	rateLimited prometheus.Counter

	// Labels: method, path, status_code
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers all collectors on a private registry. Returns nil
// when metrics are disabled.
func NewMetrics(cfg *MetricsConfig) *Metrics {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	cfg.SetDefaults()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace:   cfg.Namespace,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.ConstLabels,
		}
	}
	histogram := func(name, help string, buckets []float64) prometheus.HistogramOpts {
		return prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.ConstLabels,
			Buckets:     buckets,
		}
	}

	m := &Metrics{
		registry: registry,
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts(factory("routing_decisions_total", "Routing decisions by target and decision source")),
			[]string{"target", "source"},
		),
		disagreements: prometheus.NewCounterVec(
			prometheus.CounterOpts(factory("routing_disagreements_total", "LLM decisions that differ from the keyword classifier")),
			[]string{"llm_target", "keyword_target"},
		),
		classifierDuration: prometheus.NewHistogramVec(
			histogram("classifier_duration_seconds", "Classifier latency in seconds", []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}),
			[]string{"classifier", "outcome"},
		),
		downstreamDuration: prometheus.NewHistogramVec(
			histogram("downstream_call_duration_seconds", "Downstream agent call latency in seconds", []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}),
			[]string{"agent", "outcome"},
		),
		downstreamCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts(factory("downstream_calls_total", "Downstream agent calls by outcome")),
			[]string{"agent", "outcome"},
		),
		routeDuration: prometheus.NewHistogramVec(
			histogram("route_duration_seconds", "End-to-end routing latency in seconds", []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 150}),
			[]string{"target"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts(factory("circuit_breaker_state", "Circuit breaker state (0 closed, 1 half-open, 2 open)")),
			[]string{"name"},
		),
		cardFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts(factory("card_fetches_total", "Agent card fetches by outcome")),
			[]string{"agent", "outcome"},
		),
		rateLimited: prometheus.NewCounter(
			prometheus.CounterOpts(factory("rate_limited_total", "Requests rejected by the rate limiter")),
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts(factory("http_requests_total", "HTTP requests by method, path and status code")),
			[]string{"method", "path", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			histogram("http_request_duration_seconds", "HTTP request latency in seconds", []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 150}),
			[]string{"method", "path", "status_code"},
		),
	}

	registry.MustRegister(
		m.decisions,
		m.disagreements,
		m.classifierDuration,
		m.downstreamDuration,
		m.downstreamCalls,
		m.routeDuration,
		m.breakerState,
		m.cardFetches,
		m.rateLimited,
		m.httpRequests,
		m.httpRequestDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordDecision(target, source string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(target, source).Inc()
}

func (m *Metrics) RecordDisagreement(llmTarget, keywordTarget string) {
	if m == nil {
		return
	}
	m.disagreements.WithLabelValues(llmTarget, keywordTarget).Inc()
}

func (m *Metrics) RecordClassifier(classifier string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.classifierDuration.WithLabelValues(classifier, outcomeOf(err)).Observe(duration.Seconds())
}

func (m *Metrics) RecordDownstreamCall(agent, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.downstreamCalls.WithLabelValues(agent, outcome).Inc()
	m.downstreamDuration.WithLabelValues(agent, outcome).Observe(duration.Seconds())
}

func (m *Metrics) RecordRoute(target string, duration time.Duration) {
	if m == nil {
		return
	}
	m.routeDuration.WithLabelValues(target).Observe(duration.Seconds())
}

func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) RecordCardFetch(agent string, err error) {
	if m == nil {
		return
	}
	m.cardFetches.WithLabelValues(agent, outcomeOf(err)).Inc()
}

func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(statusCode)
	m.httpRequests.WithLabelValues(method, path, code).Inc()
	m.httpRequestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
