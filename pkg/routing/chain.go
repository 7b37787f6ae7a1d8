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
	"log/slog"
)

// Chain tries each classifier in order and returns the first decision.
// The last link should be total (KeywordClassifier is).
type Chain struct {
	links      []Classifier
	crossCheck Classifier
}

func NewChain(links ...Classifier) *Chain {
	return &Chain{links: links}
}

// WithCrossCheck evaluates checker alongside every decision made by an
// earlier link and records whether the two agree.
func (c *Chain) WithCrossCheck(checker Classifier) *Chain {
	c.crossCheck = checker
	return c
}

func (c *Chain) Classify(ctx context.Context, query string, agents Agents) (Decision, error) {
	var errs []error

	for _, link := range c.links {
		decision, err := link.Classify(ctx, query, agents)
		if err != nil {
			slog.Debug("Classifier failed, trying next", "error", err)
			errs = append(errs, err)
			continue
		}

		if len(errs) > 0 && decision.Reason == "" {
			decision.Reason = errors.Join(errs...).Error()
		}
		if c.crossCheck != nil && decision.Source != SourceKeyword {
			c.check(ctx, query, agents, &decision)
		}
		return decision, nil
	}

	if len(errs) == 0 {
		return Decision{}, &ClassificationError{Reason: "no classifiers configured"}
	}
	return Decision{}, errors.Join(errs...)
}

func (c *Chain) check(ctx context.Context, query string, agents Agents, decision *Decision) {
	other, err := c.crossCheck.Classify(ctx, query, agents)
	if err != nil {
		return
	}

	decision.KeywordTarget = other.Target
	decision.Disagrees = other.Target != decision.Target
	if decision.Disagrees {
		slog.Warn("Routing cross-check disagrees",
			"source", decision.Source,
			"target", decision.Target,
			"keyword_target", other.Target,
		)
	}
}
