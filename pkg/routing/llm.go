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

package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kadirpekel/orgrouter/pkg/a2a"
	"github.com/kadirpekel/orgrouter/pkg/model"
)

const DefaultLLMTimeout = 5 * time.Second

// Used when an agent's card is unavailable or declares no skills.
var defaultDescriptions = map[Target]string{
	TargetHR:      "employee information, vacation days, leave policies, public holidays, employee directory, time off",
	TargetFinance: "salary calculations, pay deductions, raises, financial data, payroll, annual salary",
}

const systemInstruction = `You route questions inside a company to the right internal agent.
Reply with exactly one word from this list and nothing else:
HR, FINANCE, BOTH, ADMIN_LOCAL`

// LLMClassifier asks a language model to pick the target.
type LLMClassifier struct {
	llm     model.LLM
	timeout atomic.Int64
}

type LLMOption func(*LLMClassifier)

func WithTimeout(d time.Duration) LLMOption {
	return func(c *LLMClassifier) {
		c.SetTimeout(d)
	}
}

func NewLLMClassifier(llm model.LLM, opts ...LLMOption) *LLMClassifier {
	c := &LLMClassifier{llm: llm}
	c.timeout.Store(int64(DefaultLLMTimeout))
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTimeout changes the per-call bound. Safe for concurrent use.
func (c *LLMClassifier) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout.Store(int64(d))
	}
}

func (c *LLMClassifier) Timeout() time.Duration {
	return time.Duration(c.timeout.Load())
}

func (c *LLMClassifier) Classify(ctx context.Context, query string, agents Agents) (Decision, error) {
	if c.llm == nil {
		return Decision{}, &ClassificationError{Reason: "no model configured"}
	}

	timeout := c.Timeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.llm.Generate(ctx, &model.Request{
		SystemInstruction: systemInstruction,
		Prompt:            BuildPrompt(query, agents),
		Config: &model.GenerateConfig{
			Temperature: model.Float64(0),
			MaxTokens:   model.Int(10),
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Decision{}, &ClassificationError{Reason: fmt.Sprintf("model timed out after %s", timeout), Err: err}
		}
		return Decision{}, &ClassificationError{Reason: "model call failed", Err: err}
	}

	target, ok := ParseTarget(resp.Text)
	if !ok {
		return Decision{}, &ClassificationError{Reason: "unrecognised model output", Output: resp.Text}
	}

	return Decision{
		Target: target,
		Source: SourceLLM,
		Reason: fmt.Sprintf("%s/%s", c.llm.Provider(), c.llm.Name()),
	}, nil
}

// BuildPrompt embeds the query and each agent's declared skills.
func BuildPrompt(query string, agents Agents) string {
	var b strings.Builder

	b.WriteString("Analyze the following user query and decide which agent should handle it.\n\n")
	b.WriteString("Available agents:\n")
	for _, target := range []Target{TargetHR, TargetFinance} {
		fmt.Fprintf(&b, "- %s: handles %s\n", target, describe(target, agents[target]))
	}
	b.WriteString("\nAnswer BOTH when the query needs information from both agents.\n")
	b.WriteString("Answer ADMIN_LOCAL when the query is about this assistant itself or fits neither agent.\n\n")
	fmt.Fprintf(&b, "User query: %q\n", query)

	return b.String()
}

func describe(target Target, card *a2a.AgentCard) string {
	if card == nil || len(card.Skills) == 0 {
		return defaultDescriptions[target]
	}

	parts := make([]string, 0, len(card.Skills))
	for _, skill := range card.Skills {
		desc := strings.TrimSpace(skill.Description)
		if desc == "" {
			desc = skill.Name
		}
		if len(skill.Tags) > 0 {
			desc = fmt.Sprintf("%s [%s]", desc, strings.Join(skill.Tags, ", "))
		}
		if desc != "" {
			parts = append(parts, desc)
		}
	}
	if len(parts) == 0 {
		return defaultDescriptions[target]
	}
	return strings.Join(parts, "; ")
}

// ParseTarget reads a target out of free-form model output. BOTH anywhere
// in the output wins; otherwise the first recognised word decides.
func ParseTarget(output string) (Target, bool) {
	words := strings.FieldsFunc(strings.ToUpper(output), func(r rune) bool {
		return !(r >= 'A' && r <= 'Z') && r != '_'
	})

	for _, w := range words {
		if w == string(TargetBoth) {
			return TargetBoth, true
		}
	}

	for _, w := range words {
		switch w {
		case "HR":
			return TargetHR, true
		case "FINANCE":
			return TargetFinance, true
		case "ADMIN_LOCAL", "ADMIN", "LOCAL":
			return TargetAdminLocal, true
		}
	}
	return "", false
}
