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

// Package aggregate fans a query out to the routed agents and joins their
// answers into one reply.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/orgrouter/pkg/a2a"
	"github.com/kadirpekel/orgrouter/pkg/discovery"
	"github.com/kadirpekel/orgrouter/pkg/routing"
)

// Result is one agent's outcome. Exactly one of Text and Err is meaningful.
type Result struct {
	Label    routing.Target
	Text     string
	Err      error
	Duration time.Duration
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Response is the joined reply. Results follow the presentation order of
// the target (HR before FINANCE), never completion order.
type Response struct {
	Target  routing.Target
	Results []Result
}

// CallFunc performs one downstream call for label.
type CallFunc func(ctx context.Context, label routing.Target, query string) (string, error)

// Aggregate orders results for decision and fills in a failure for any
// routed label that has no result.
func Aggregate(decision routing.Decision, results []Result) Response {
	byLabel := make(map[routing.Target]Result, len(results))
	for _, r := range results {
		byLabel[r.Label] = r
	}

	labels := decision.Target.Labels()
	ordered := make([]Result, 0, len(labels))
	for _, label := range labels {
		r, ok := byLabel[label]
		if !ok {
			r = Result{Label: label, Err: errors.New("no response")}
		}
		ordered = append(ordered, r)
	}

	return Response{Target: decision.Target, Results: ordered}
}

// Text renders the user-facing reply. A single successful agent's text is
// passed through verbatim.
func (r Response) Text() string {
	if len(r.Results) == 1 {
		res := r.Results[0]
		if res.OK() {
			if strings.TrimSpace(res.Text) == "" {
				return emptyNotice(res.Label)
			}
			return res.Text
		}
		return FailureNotice(res.Label, res.Err)
	}

	var b strings.Builder
	for i, res := range r.Results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch {
		case !res.OK():
			b.WriteString(FailureNotice(res.Label, res.Err))
		case strings.TrimSpace(res.Text) == "":
			b.WriteString(emptyNotice(res.Label))
		default:
			fmt.Fprintf(&b, "%s:\n%s", sectionTitle(res.Label), strings.TrimSpace(res.Text))
		}
	}
	return b.String()
}

// Succeeded reports whether at least one agent answered.
func (r Response) Succeeded() bool {
	for _, res := range r.Results {
		if res.OK() {
			return true
		}
	}
	return false
}

// Failed returns the results that carry an error.
func (r Response) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.OK() {
			failed = append(failed, res)
		}
	}
	return failed
}

// FailureNotice turns a downstream failure into one user-readable sentence.
func FailureNotice(label routing.Target, err error) string {
	agent := agentName(label)

	var (
		authErr       *a2a.AuthError
		timeoutErr    *a2a.TimeoutError
		downstreamErr *a2a.DownstreamError
		discoveryErr  *discovery.DiscoveryError
	)

	switch {
	case errors.As(err, &authErr):
		return fmt.Sprintf("The %s rejected our credentials (HTTP %d).", agent, authErr.Status)
	case errors.As(err, &timeoutErr):
		return fmt.Sprintf("The %s timed out after %s.", agent, timeoutErr.After)
	case errors.As(err, &downstreamErr) && downstreamErr.Status != 0:
		return fmt.Sprintf("The %s is unavailable right now (HTTP %d).", agent, downstreamErr.Status)
	case errors.Is(err, context.Canceled):
		return fmt.Sprintf("The request to the %s was cancelled.", agent)
	case errors.As(err, &downstreamErr):
		return fmt.Sprintf("The %s could not be reached.", agent)
	case errors.As(err, &discoveryErr):
		return fmt.Sprintf("The %s is not available right now (its agent card could not be loaded).", agent)
	default:
		return fmt.Sprintf("The %s could not answer this request.", agent)
	}
}

func emptyNotice(label routing.Target) string {
	return fmt.Sprintf("The %s returned an empty answer.", agentName(label))
}

func agentName(label routing.Target) string {
	return label.DisplayName() + " agent"
}

func sectionTitle(label routing.Target) string {
	return label.DisplayName() + " Agent"
}

// Aggregator runs the downstream calls for a decision.
type Aggregator struct{}

func New() *Aggregator {
	return &Aggregator{}
}

// Dispatch calls every routed agent concurrently and waits for all of them.
// A failing call never cancels its sibling; cancelling ctx cancels both.
func (a *Aggregator) Dispatch(ctx context.Context, decision routing.Decision, query string, call CallFunc) Response {
	labels := decision.Target.Labels()
	results := make([]Result, len(labels))

	var g errgroup.Group
	for i, label := range labels {
		g.Go(func() error {
			start := time.Now()
			text, err := call(ctx, label, query)
			results[i] = Result{Label: label, Text: text, Err: err, Duration: time.Since(start)}
			if err != nil {
				slog.Warn("Downstream call failed", "agent", label, "error", err, "duration", results[i].Duration)
			}
			return nil
		})
	}
	_ = g.Wait()

	return Aggregate(decision, results)
}
