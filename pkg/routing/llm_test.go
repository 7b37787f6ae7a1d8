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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/orgrouter/pkg/a2a"
	"github.com/kadirpekel/orgrouter/pkg/model"
)

type fakeLLM struct {
	text    string
	err     error
	delay   time.Duration
	lastReq *model.Request
}

func (f *fakeLLM) Name() string             { return "fake-model" }
func (f *fakeLLM) Provider() model.Provider { return model.ProviderBedrock }
func (f *fakeLLM) Close() error             { return nil }

func (f *fakeLLM) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	f.lastReq = req
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &model.Response{Text: f.text}, nil
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		output string
		want   Target
		ok     bool
	}{
		{"HR", TargetHR, true},
		{"Finance", TargetFinance, true},
		{"  finance.  ", TargetFinance, true},
		{"BOTH", TargetBoth, true},
		{"HR or FINANCE? I'd say BOTH.", TargetBoth, true},
		{"The answer is: HR", TargetHR, true},
		{"ADMIN_LOCAL", TargetAdminLocal, true},
		{"admin", TargetAdminLocal, true},
		{"Local", TargetAdminLocal, true},
		{"**HR**", TargetHR, true},
		{"", "", false},
		{"I cannot decide", "", false},
		{"HRFINANCE", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			got, ok := ParseTarget(tt.output)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLLMClassifier_Classify(t *testing.T) {
	llm := &fakeLLM{text: "FINANCE"}
	c := NewLLMClassifier(llm)

	d, err := c.Classify(context.Background(), "What is the salary of EMP0002?", nil)
	require.NoError(t, err)

	assert.Equal(t, TargetFinance, d.Target)
	assert.Equal(t, SourceLLM, d.Source)
	require.NotNil(t, llm.lastReq)
	assert.Equal(t, 0.0, llm.lastReq.Config.TemperatureOr(1))
	assert.Contains(t, llm.lastReq.Prompt, "What is the salary of EMP0002?")
}

func TestLLMClassifier_Errors(t *testing.T) {
	tests := []struct {
		name string
		llm  *fakeLLM
	}{
		{name: "model_error", llm: &fakeLLM{err: errors.New("ThrottlingException")}},
		{name: "unparseable", llm: &fakeLLM{text: "I am not sure"}},
		{name: "empty", llm: &fakeLLM{err: model.ErrEmptyResponse}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLLMClassifier(tt.llm).Classify(context.Background(), "q", nil)

			var classErr *ClassificationError
			assert.True(t, errors.As(err, &classErr), "got %v", err)
		})
	}
}

func TestLLMClassifier_Timeout(t *testing.T) {
	c := NewLLMClassifier(&fakeLLM{text: "HR", delay: time.Second}, WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := c.Classify(context.Background(), "q", nil)

	var classErr *ClassificationError
	require.True(t, errors.As(err, &classErr))
	assert.Contains(t, classErr.Reason, "timed out")
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestLLMClassifier_SetTimeout(t *testing.T) {
	c := NewLLMClassifier(&fakeLLM{})
	assert.Equal(t, DefaultLLMTimeout, c.Timeout())

	c.SetTimeout(2 * time.Second)
	assert.Equal(t, 2*time.Second, c.Timeout())

	c.SetTimeout(0)
	assert.Equal(t, 2*time.Second, c.Timeout(), "non-positive values are ignored")
}

func TestBuildPrompt_UsesDeclaredSkills(t *testing.T) {
	agents := Agents{
		TargetHR: &a2a.AgentCard{
			Name: "HR Agent",
			Skills: []a2a.AgentSkill{{
				ID:          "hr_agent",
				Name:        "HR",
				Description: "Employee records and public holidays",
				Tags:        []string{"HR", "Holidays"},
			}},
		},
	}

	prompt := BuildPrompt("Is Friday a holiday?", agents)

	assert.Contains(t, prompt, "Employee records and public holidays [HR, Holidays]")
	assert.Contains(t, prompt, defaultDescriptions[TargetFinance], "missing card falls back to built-in description")
	assert.Contains(t, prompt, `"Is Friday a holiday?"`)
	assert.True(t, strings.Index(prompt, "- HR:") < strings.Index(prompt, "- FINANCE:"))
}

func TestChain_FallsBackToKeywords(t *testing.T) {
	chain := NewChain(
		NewLLMClassifier(&fakeLLM{err: errors.New("bedrock unavailable")}),
		NewKeywordClassifier(),
	)

	scenarios := map[string]Target{
		"How many vacation days does EMP0001 have left?": TargetHR,
		"What is the annual salary of EMP0003?":          TargetFinance,
		"Who is EMP0002 and what do they earn?":          TargetBoth,
	}

	for query, want := range scenarios {
		d, err := chain.Classify(context.Background(), query, nil)
		require.NoError(t, err)
		assert.Equal(t, want, d.Target, query)
		assert.Equal(t, SourceKeyword, d.Source)
		assert.Contains(t, d.Reason, "bedrock unavailable")
	}
}

func TestChain_LLMWinsAndCrossCheckIsInformational(t *testing.T) {
	keyword := NewKeywordClassifier()
	chain := NewChain(NewLLMClassifier(&fakeLLM{text: "FINANCE"}), keyword).WithCrossCheck(keyword)

	d, err := chain.Classify(context.Background(), "How many vacation days does EMP0001 have left?", nil)
	require.NoError(t, err)

	assert.Equal(t, TargetFinance, d.Target, "LLM decision is never overridden")
	assert.Equal(t, SourceLLM, d.Source)
	assert.Equal(t, TargetHR, d.KeywordTarget)
	assert.True(t, d.Disagrees)

	d, err = chain.Classify(context.Background(), "What is the salary of EMP0002?", nil)
	require.NoError(t, err)
	assert.False(t, d.Disagrees)
}

func TestChain_NoCrossCheckOnKeywordDecision(t *testing.T) {
	keyword := NewKeywordClassifier()
	chain := NewChain(NewLLMClassifier(nil), keyword).WithCrossCheck(keyword)

	d, err := chain.Classify(context.Background(), "salary", nil)
	require.NoError(t, err)
	assert.Equal(t, SourceKeyword, d.Source)
	assert.Empty(t, d.KeywordTarget)
	assert.False(t, d.Disagrees)
}

func TestChain_AllFail(t *testing.T) {
	failing := ClassifierFunc(func(ctx context.Context, query string, agents Agents) (Decision, error) {
		return Decision{}, &ClassificationError{Reason: "down"}
	})

	_, err := NewChain(failing, failing).Classify(context.Background(), "q", nil)
	assert.Error(t, err)

	_, err = NewChain().Classify(context.Background(), "q", nil)
	assert.Error(t, err)
}
