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

// Package routing decides which downstream agent(s) should answer a query.
//
// Classifiers are composed with a Chain: the LLM classifier runs first and
// the keyword classifier, which never fails, catches everything else.
package routing

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadirpekel/orgrouter/pkg/a2a"
)

// Target is where a query is routed.
type Target string

const (
	TargetHR         Target = "HR"
	TargetFinance    Target = "FINANCE"
	TargetBoth       Target = "BOTH"
	TargetAdminLocal Target = "ADMIN_LOCAL"
)

// Labels returns the downstream agent labels a target fans out to, in the
// order their answers are presented.
func (t Target) Labels() []Target {
	switch t {
	case TargetHR:
		return []Target{TargetHR}
	case TargetFinance:
		return []Target{TargetFinance}
	case TargetBoth:
		return []Target{TargetHR, TargetFinance}
	default:
		return nil
	}
}

func (t Target) Valid() bool {
	switch t {
	case TargetHR, TargetFinance, TargetBoth, TargetAdminLocal:
		return true
	}
	return false
}

// DisplayName is the user-facing name of a single-agent target.
func (t Target) DisplayName() string {
	switch t {
	case TargetHR:
		return "HR"
	case TargetFinance:
		return "Finance"
	case TargetBoth:
		return "HR and Finance"
	default:
		return "Admin"
	}
}

// Source records which path produced a decision.
type Source string

const (
	SourceLLM     Source = "llm"
	SourceKeyword Source = "fallback-keyword"
)

// Decision is the outcome of classifying one query.
type Decision struct {
	Target Target
	Source Source
	// Reason is free text; for fallback decisions it carries the error
	// that made the earlier links fail.
	Reason string

	// KeywordTarget and Disagrees record the keyword cross-check of an LLM
	// decision. They never change Target.
	KeywordTarget Target
	Disagrees     bool
}

// Agents is the set of available downstream cards keyed by target label.
// An agent whose card could not be discovered is absent.
type Agents map[Target]*a2a.AgentCard

// Classifier maps a query to a routing decision.
type Classifier interface {
	Classify(ctx context.Context, query string, agents Agents) (Decision, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, query string, agents Agents) (Decision, error)

func (f ClassifierFunc) Classify(ctx context.Context, query string, agents Agents) (Decision, error) {
	return f(ctx, query, agents)
}

// ClassificationError reports that a classifier could not produce a
// decision. It is absorbed by the Chain and never reaches callers.
type ClassificationError struct {
	Reason string
	Output string
	Err    error
}

func (e *ClassificationError) Error() string {
	var b strings.Builder
	b.WriteString("classification failed: ")
	b.WriteString(e.Reason)
	if e.Output != "" {
		fmt.Fprintf(&b, " (output %q)", truncate(e.Output, 80))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
