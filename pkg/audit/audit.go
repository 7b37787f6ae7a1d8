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

// Package audit records one entry per routed request: who asked, where the
// query went, how the decision was made and how each downstream agent fared.
package audit

import (
	"context"
	"time"

	"github.com/kadirpekel/orgrouter/pkg/routing"
)

// Outcome is the result of one downstream call.
type Outcome struct {
	Agent      string `json:"agent"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type Record struct {
	CorrelationID string
	Caller        string
	Target        routing.Target
	Source        routing.Source
	KeywordTarget routing.Target
	Disagrees     bool
	Outcomes      []Outcome
	Duration      time.Duration
	CreatedAt     time.Time
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Caller        string
	Target        routing.Target
	DisagreesOnly bool
	Limit         int
}

const DefaultListLimit = 100

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

func (f Filter) match(r Record) bool {
	if f.Caller != "" && r.Caller != f.Caller {
		return false
	}
	if f.Target != "" && r.Target != f.Target {
		return false
	}
	if f.DisagreesOnly && !r.Disagrees {
		return false
	}
	return true
}

// Store persists audit records. List returns the newest records first.
type Store interface {
	Record(ctx context.Context, rec Record) error
	List(ctx context.Context, filter Filter) ([]Record, error)
	Close() error
}
