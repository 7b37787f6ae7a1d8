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
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kadirpekel/orgrouter/pkg/a2a"
)

// Cache stores agent cards by base URL.
type Cache interface {
	Get(baseURL string) (*a2a.AgentCard, bool)
	Put(baseURL string, card *a2a.AgentCard)
	Invalidate(baseURL string)
}

// MemoryCache keeps cards for the life of the process.
type MemoryCache struct {
	mu    sync.RWMutex
	cards map[string]*a2a.AgentCard
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{cards: make(map[string]*a2a.AgentCard)}
}

func (c *MemoryCache) Get(baseURL string) (*a2a.AgentCard, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	card, ok := c.cards[baseURL]
	return card, ok
}

func (c *MemoryCache) Put(baseURL string, card *a2a.AgentCard) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cards[baseURL] = card
}

func (c *MemoryCache) Invalidate(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.cards, baseURL)
}

// ExpirableCache evicts cards after a TTL so redeployed agents are
// rediscovered without a restart.
type ExpirableCache struct {
	lru *expirable.LRU[string, *a2a.AgentCard]
}

func NewExpirableCache(size int, ttl time.Duration) *ExpirableCache {
	if size <= 0 {
		size = 64
	}
	return &ExpirableCache{lru: expirable.NewLRU[string, *a2a.AgentCard](size, nil, ttl)}
}

func (c *ExpirableCache) Get(baseURL string) (*a2a.AgentCard, bool) {
	return c.lru.Get(baseURL)
}

func (c *ExpirableCache) Put(baseURL string, card *a2a.AgentCard) {
	c.lru.Add(baseURL, card)
}

func (c *ExpirableCache) Invalidate(baseURL string) {
	c.lru.Remove(baseURL)
}
