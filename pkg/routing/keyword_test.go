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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordClassifier_Match(t *testing.T) {
	k := NewKeywordClassifier()

	tests := []struct {
		query string
		want  Target
	}{
		{"How many vacation days does EMP0001 have left?", TargetHR},
		{"What is the annual salary of EMP0003?", TargetFinance},
		{"Who is EMP0002 and what do they earn?", TargetBoth},
		{"Is next Monday a public holiday?", TargetHR},
		{"List the employee directory", TargetHR},
		{"What are the upcoming HOLIDAYS?", TargetHR},
		{"Can EMP0001 take time off next week?", TargetHR},
		{"Show me the pay deductions", TargetFinance},
		{"When are raises announced?", TargetFinance},
		{"How is performance compensation calculated?", TargetFinance},
		{"What is EMP0002's salary and how much leave remains?", TargetBoth},
		{"Show the employees' salaries", TargetBoth},
		{"What can you do?", TargetAdminLocal},
		{"hello", TargetAdminLocal},
		{"", TargetAdminLocal},
		{"I paid with paypal", TargetFinance},
		{"Send it via paypal", TargetAdminLocal},
		{"Please cleave the log", TargetAdminLocal},
		{"Who are you?", TargetAdminLocal},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, k.Match(tt.query))
		})
	}
}

func TestKeywordClassifier_IsTotal(t *testing.T) {
	k := NewKeywordClassifier()

	inputs := []string{
		"",
		"   \t\n",
		"'''",
		"\x00\xff\xfe invalid utf8",
		"💰💰💰",
		strings.Repeat("salary vacation ", 100000),
		strings.Repeat("x", 1<<20),
	}

	for _, in := range inputs {
		d, err := k.Classify(context.Background(), in, nil)
		assert.NoError(t, err)
		assert.True(t, d.Target.Valid())
		assert.Equal(t, SourceKeyword, d.Source)
	}
}

func TestKeywordClassifier_TermSetsMapToDomains(t *testing.T) {
	k := NewKeywordClassifier()

	for _, term := range []string{"salary", "pay", "raise", "deduction", "compensation", "performance"} {
		assert.Equal(t, TargetFinance, k.Match("tell me about "+term), term)
	}
	for _, term := range []string{"employee", "vacation", "leave", "holiday", "directory"} {
		assert.Equal(t, TargetHR, k.Match("tell me about "+term), term)
	}
	assert.Equal(t, TargetBoth, k.Match("salary and vacation"))
}

func TestTarget_Labels(t *testing.T) {
	assert.Equal(t, []Target{TargetHR, TargetFinance}, TargetBoth.Labels())
	assert.Equal(t, []Target{TargetHR}, TargetHR.Labels())
	assert.Equal(t, []Target{TargetFinance}, TargetFinance.Labels())
	assert.Empty(t, TargetAdminLocal.Labels())
	assert.False(t, Target("LEGAL").Valid())
}
