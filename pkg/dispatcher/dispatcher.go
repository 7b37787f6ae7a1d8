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

// Package dispatcher is the Admin agent's request path: it classifies an
// inbound query, fans it out to the HR and Finance agents and joins their
// answers into one reply.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kadirpekel/orgrouter/pkg/a2a"
	"github.com/kadirpekel/orgrouter/pkg/aggregate"
	"github.com/kadirpekel/orgrouter/pkg/audit"
	"github.com/kadirpekel/orgrouter/pkg/auth"
	"github.com/kadirpekel/orgrouter/pkg/discovery"
	"github.com/kadirpekel/orgrouter/pkg/observability"
	"github.com/kadirpekel/orgrouter/pkg/routing"
)

const DefaultRequestTimeout = 150 * time.Second

// ErrEmptyQuery is returned by Route for a query with no text.
var ErrEmptyQuery = errors.New("query text is empty")

// Query is one inbound user request.
type Query struct {
	Text          string
	CorrelationID string
	Caller        string
	TaskID        string
	ContextID     string
}

// Reply is the joined answer to a Query.
type Reply struct {
	Text          string
	CorrelationID string
	Decision      routing.Decision
	// Response is empty for ADMIN_LOCAL replies.
	Response aggregate.Response
	Duration time.Duration
}

// Sender delivers one message to a downstream agent. *a2a.Client implements it.
type Sender interface {
	Send(ctx context.Context, card *a2a.AgentCard, msg a2a.Message, token string) (*a2a.AgentResponse, error)
}

type Dispatcher struct {
	registry   *discovery.Registry
	classifier routing.Classifier
	sender     Sender
	aggregator *aggregate.Aggregator
	tokens     auth.TokenSource
	audit      audit.Store
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	card       *a2a.AgentCard

	timeout atomic.Int64
}

type Option func(*Dispatcher)

// WithSender replaces the default a2a client.
func WithSender(s Sender) Option {
	return func(d *Dispatcher) {
		d.sender = s
	}
}

// WithTokenSource enables bearer tokens on downstream calls.
func WithTokenSource(ts auth.TokenSource) Option {
	return func(d *Dispatcher) {
		d.tokens = ts
	}
}

func WithAuditStore(s audit.Store) Option {
	return func(d *Dispatcher) {
		d.audit = s
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithTracer(t *observability.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = t
	}
}

// WithAdminCard sets the router's own card, used for ADMIN_LOCAL replies.
func WithAdminCard(card *a2a.AgentCard) Option {
	return func(d *Dispatcher) {
		d.card = card
	}
}

func WithRequestTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.SetRequestTimeout(timeout)
	}
}

func New(registry *discovery.Registry, classifier routing.Classifier, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:   registry,
		classifier: classifier,
		aggregator: aggregate.New(),
	}
	d.timeout.Store(int64(DefaultRequestTimeout))

	for _, opt := range opts {
		opt(d)
	}

	if d.sender == nil {
		d.sender = a2a.NewClient()
	}
	return d
}

// SetRequestTimeout changes the overall per-request deadline. Safe to call
// while requests are in flight; it applies to new requests.
func (d *Dispatcher) SetRequestTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	d.timeout.Store(int64(timeout))
}

func (d *Dispatcher) RequestTimeout() time.Duration {
	return time.Duration(d.timeout.Load())
}

// Route classifies q and answers it. Downstream failures are folded into the
// reply text; the only errors returned concern the query itself.
func (d *Dispatcher) Route(ctx context.Context, q Query) (Reply, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return Reply{}, ErrEmptyQuery
	}
	if q.CorrelationID == "" {
		q.CorrelationID = uuid.NewString()
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, d.RequestTimeout())
	defer cancel()

	ctx, span := d.tracer.StartRoute(ctx, q.CorrelationID, q.Caller)
	defer span.End()

	log := slog.With("correlation_id", q.CorrelationID)
	log.Info("Routing query", "caller", q.Caller, "length", len(q.Text))

	entries := d.registry.Cards(ctx)
	agents := make(routing.Agents, len(entries))
	for _, e := range entries {
		d.metrics.RecordCardFetch(e.Agent.Name, e.Err)
		if e.Available() {
			agents[routing.Target(e.Agent.Name)] = e.Card
		}
	}

	decision := d.classify(ctx, q.Text, agents)
	span.SetAttributes(
		attribute.String(observability.AttrTarget, string(decision.Target)),
		attribute.String(observability.AttrSource, string(decision.Source)),
		attribute.Bool(observability.AttrDisagrees, decision.Disagrees),
	)
	log.Info("Query classified", "target", decision.Target, "source", decision.Source, "reason", decision.Reason)

	reply := Reply{CorrelationID: q.CorrelationID, Decision: decision}
	if decision.Target == routing.TargetAdminLocal {
		reply.Text = d.capabilities(entries)
	} else {
		reply.Response = d.aggregator.Dispatch(ctx, decision, q.Text, d.call)
		reply.Text = reply.Response.Text()
		if failed := reply.Response.Failed(); len(failed) > 0 {
			labels := make([]string, len(failed))
			for i, res := range failed {
				labels[i] = string(res.Label)
			}
			span.SetAttributes(attribute.StringSlice(observability.AttrFailedAgents, labels))
			log.Warn("Downstream agents failed", "agents", labels, "partial", reply.Response.Succeeded())
		}
		if !reply.Response.Succeeded() {
			d.tracer.RecordError(span, errors.New("no downstream agent answered"))
		}
	}
	reply.Duration = time.Since(start)

	d.metrics.RecordRoute(string(decision.Target), reply.Duration)
	d.record(ctx, q, reply)

	log.Info("Query answered", "target", decision.Target, "duration", reply.Duration)
	return reply, nil
}

func (d *Dispatcher) classify(ctx context.Context, query string, agents routing.Agents) routing.Decision {
	start := time.Now()
	decision, err := d.classifier.Classify(ctx, query, agents)
	d.metrics.RecordClassifier("chain", time.Since(start), err)

	if err != nil {
		// Only reachable when the chain has no total link.
		slog.Error("Classification failed, answering locally", "error", err)
		decision = routing.Decision{
			Target: routing.TargetAdminLocal,
			Source: routing.SourceKeyword,
			Reason: err.Error(),
		}
	}

	d.metrics.RecordDecision(string(decision.Target), string(decision.Source))
	if decision.Disagrees {
		d.metrics.RecordDisagreement(string(decision.Target), string(decision.KeywordTarget))
	}
	return decision
}

// call is the aggregate.CallFunc for one routed label.
func (d *Dispatcher) call(ctx context.Context, label routing.Target, query string) (string, error) {
	name := string(label)
	card, err := d.registry.Card(ctx, name)
	if err != nil {
		return "", err
	}

	ctx, span := d.tracer.StartDownstreamCall(ctx, name, card.URL)
	defer span.End()

	start := time.Now()
	resp, err := d.send(ctx, card, query)
	outcome := "ok"
	if err != nil {
		outcome = outcomeOf(err)
		d.tracer.RecordError(span, err)
	}
	d.metrics.RecordDownstreamCall(name, outcome, time.Since(start))

	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// send performs the call and, on a 401, retries once with a freshly issued
// token. A 403 is returned as is.
func (d *Dispatcher) send(ctx context.Context, card *a2a.AgentCard, query string) (*a2a.AgentResponse, error) {
	token := d.token(ctx, card.Name, false)

	resp, err := d.sender.Send(ctx, card, a2a.NewTextMessage(a2a.RoleUser, query), token)
	var authErr *a2a.AuthError
	if err == nil || d.tokens == nil || !errors.As(err, &authErr) {
		return resp, err
	}
	if authErr.Forbidden() {
		// a new token carries the same grants
		return nil, err
	}

	slog.Warn("Agent rejected token, retrying with a new one", "agent", card.Name, "error", err)
	fresh := d.token(ctx, card.Name, true)
	if fresh == "" || fresh == token {
		return nil, err
	}
	return d.sender.Send(ctx, card, a2a.NewTextMessage(a2a.RoleUser, query), fresh)
}

// token returns "" when no token source is configured or the fetch fails;
// the call then goes out unauthenticated and the agent decides.
func (d *Dispatcher) token(ctx context.Context, agent string, refresh bool) string {
	if d.tokens == nil {
		return ""
	}

	var (
		tok string
		err error
	)
	if refresh {
		tok, err = d.tokens.Refresh(ctx)
	} else {
		tok, err = d.tokens.Token(ctx)
	}
	if err != nil {
		slog.Warn("Failed to obtain access token, sending without one", "agent", agent, "error", err)
		return ""
	}
	return tok
}

func (d *Dispatcher) record(ctx context.Context, q Query, reply Reply) {
	if d.audit == nil {
		return
	}

	rec := audit.Record{
		CorrelationID: q.CorrelationID,
		Caller:        q.Caller,
		Target:        reply.Decision.Target,
		Source:        reply.Decision.Source,
		KeywordTarget: reply.Decision.KeywordTarget,
		Disagrees:     reply.Decision.Disagrees,
		Duration:      reply.Duration,
		CreatedAt:     time.Now().UTC(),
	}
	for _, res := range reply.Response.Results {
		o := audit.Outcome{
			Agent:      string(res.Label),
			OK:         res.OK(),
			DurationMS: res.Duration.Milliseconds(),
		}
		if res.Err != nil {
			o.Error = res.Err.Error()
		}
		rec.Outcomes = append(rec.Outcomes, o)
	}

	// The request deadline may already be spent; the record should still land.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := d.audit.Record(writeCtx, rec); err != nil {
		slog.Error("Failed to write audit record", "correlation_id", q.CorrelationID, "error", err)
	}
}

// capabilities renders the ADMIN_LOCAL reply.
func (d *Dispatcher) capabilities(entries []discovery.Entry) string {
	var b strings.Builder

	name := "Admin Agent"
	if d.card != nil && d.card.Name != "" {
		name = d.card.Name
	}
	fmt.Fprintf(&b, "I am the %s. I route employee questions to the HR and Finance agents and combine their answers.\n", name)

	if d.card != nil {
		for _, skill := range d.card.Skills {
			fmt.Fprintf(&b, "\n- %s: %s", skill.Name, skill.Description)
		}
		if len(d.card.Skills) > 0 {
			b.WriteString("\n")
		}
	}

	b.WriteString("\nConnected agents:")
	for _, e := range entries {
		label := routing.Target(e.Agent.Name).DisplayName()
		if !e.Available() {
			fmt.Fprintf(&b, "\n- %s: currently unavailable", label)
			continue
		}
		fmt.Fprintf(&b, "\n- %s (%s)", label, e.Card.Name)
		if skills := skillNames(e.Card); skills != "" {
			fmt.Fprintf(&b, ": %s", skills)
		}
	}

	b.WriteString("\n\nAsk about vacation, leave, holidays or the employee directory for HR, and salary, pay, raises or deductions for Finance.")
	return b.String()
}

func skillNames(card *a2a.AgentCard) string {
	names := make([]string, 0, len(card.Skills))
	for _, s := range card.Skills {
		if s.Name != "" {
			names = append(names, s.Name)
		}
	}
	return strings.Join(names, ", ")
}

func outcomeOf(err error) string {
	var (
		authErr    *a2a.AuthError
		timeoutErr *a2a.TimeoutError
	)
	switch {
	case errors.As(err, &authErr):
		return "auth_error"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}
