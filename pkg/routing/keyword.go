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
	"unicode"
)

// Word forms are listed explicitly so that "pay" never matches "paypal"
// and "leave" never matches "cleave".
var (
	financeTerms = []string{
		"salary", "salaries",
		"pay", "pays", "paid", "paying", "payroll", "payslip", "payslips",
		"raise", "raises", "raised",
		"deduction", "deductions", "deduct", "deducted",
		"compensation",
		"performance",
		"earn", "earns", "earned", "earning", "earnings",
		"wage", "wages", "bonus", "bonuses", "income",
	}

	hrTerms = []string{
		"employee", "employees",
		"vacation", "vacations",
		"leave", "leaves",
		"holiday", "holidays",
		"directory",
		"pto", "who's",
	}

	hrPhrases = []string{"time off", "who is"}
)

// KeywordClassifier matches the query against fixed HR and Finance term
// lists. It is total: every input, including the empty string, yields a
// decision and a nil error.
type KeywordClassifier struct {
	finance map[string]bool
	hr      map[string]bool
	phrases []string
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		finance: toSet(financeTerms),
		hr:      toSet(hrTerms),
		phrases: hrPhrases,
	}
}

func (k *KeywordClassifier) Classify(_ context.Context, query string, _ Agents) (Decision, error) {
	return Decision{Target: k.Match(query), Source: SourceKeyword}, nil
}

// Match returns the target for query.
func (k *KeywordClassifier) Match(query string) Target {
	words := tokenize(query)

	var finance, hr bool
	for _, w := range words {
		if k.finance[w] || k.finance[strings.TrimSuffix(w, "'s")] {
			finance = true
		}
		if k.hr[w] || k.hr[strings.TrimSuffix(w, "'s")] {
			hr = true
		}
	}

	if !hr {
		joined := " " + strings.Join(words, " ") + " "
		for _, phrase := range k.phrases {
			if strings.Contains(joined, " "+phrase+" ") {
				hr = true
				break
			}
		}
	}

	switch {
	case finance && hr:
		return TargetBoth
	case finance:
		return TargetFinance
	case hr:
		return TargetHR
	default:
		return TargetAdminLocal
	}
}

// tokenize lowercases s and splits it into words of letters, digits and
// inner apostrophes.
func tokenize(s string) []string {
	s = strings.ToLower(strings.ReplaceAll(s, "’", "'"))
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})

	words := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, "'"); f != "" {
			words = append(words, f)
		}
	}
	return words
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
