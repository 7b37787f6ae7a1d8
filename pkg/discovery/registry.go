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

package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/orgrouter/pkg/a2a"
)

// Agent is a downstream agent known by its routing label ("HR", "FINANCE").
type Agent struct {
	Name    string
	BaseURL string
}

// Entry is the discovery status of one agent.
type Entry struct {
	Agent Agent
	Card  *a2a.AgentCard
	Err   error
}

func (e Entry) Available() bool {
	return e.Err == nil && e.Card != nil
}

// Registry maps routing labels to downstream agents and resolves their
// cards through a Fetcher. Agents keep their registration order.
type Registry struct {
	mu      sync.RWMutex
	fetcher *Fetcher
	agents  []Agent
}

func NewRegistry(fetcher *Fetcher, agents ...Agent) *Registry {
	if fetcher == nil {
		fetcher = NewFetcher()
	}
	r := &Registry{fetcher: fetcher}
	r.SetAgents(agents...)
	return r
}

// SetAgents replaces the agent set. Cards cached under a URL that is no
// longer in use are dropped.
func (r *Registry) SetAgents(agents ...Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]bool, len(agents))
	for _, a := range agents {
		next[a.BaseURL] = true
	}
	for _, old := range r.agents {
		if !next[old.BaseURL] {
			r.fetcher.Invalidate(old.BaseURL)
			slog.Info("Downstream agent endpoint changed", "agent", old.Name, "old_url", old.BaseURL)
		}
	}

	r.agents = append([]Agent(nil), agents...)
}

func (r *Registry) Agents() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]Agent(nil), r.agents...)
}

func (r *Registry) Lookup(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.agents {
		if a.Name == name {
			return a, true
		}
	}
	return Agent{}, false
}

// Card resolves the card of the named agent, fetching on first use.
func (r *Registry) Card(ctx context.Context, name string) (*a2a.AgentCard, error) {
	agent, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown agent %q", name)
	}
	return r.fetcher.Get(ctx, agent.BaseURL)
}

// Refresh drops the cached card of the named agent.
func (r *Registry) Refresh(name string) {
	if agent, ok := r.Lookup(name); ok {
		r.fetcher.Invalidate(agent.BaseURL)
	}
}

// Cards resolves every agent concurrently. Discovery failures are reported
// per entry and never fail the whole call.
func (r *Registry) Cards(ctx context.Context) []Entry {
	agents := r.Agents()
	entries := make([]Entry, len(agents))

	var g errgroup.Group
	for i, agent := range agents {
		entries[i].Agent = agent
		g.Go(func() error {
			card, err := r.fetcher.Get(ctx, agent.BaseURL)
			if err != nil {
				slog.Warn("Agent card unavailable", "agent", agent.Name, "error", err)
			}
			entries[i].Card = card
			entries[i].Err = err
			return nil
		})
	}
	_ = g.Wait()

	return entries
}
