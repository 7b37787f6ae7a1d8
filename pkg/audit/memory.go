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

package audit

import (
	"context"
	"sync"
)

const DefaultMemoryCapacity = 1000

// MemoryStore keeps the most recent records in a fixed-size ring.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	next    int
	full    bool
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{records: make([]Record, capacity)}
}

func (s *MemoryStore) Record(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Outcomes = append([]Outcome(nil), rec.Outcomes...)
	s.records[s.next] = rec
	s.next = (s.next + 1) % len(s.records)
	if s.next == 0 {
		s.full = true
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.next
	if s.full {
		n = len(s.records)
	}

	limit := filter.limit()
	out := make([]Record, 0, min(n, limit))
	for i := 0; i < n && len(out) < limit; i++ {
		idx := (s.next - 1 - i + len(s.records)) % len(s.records)
		if rec := s.records[idx]; filter.match(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.full {
		return len(s.records)
	}
	return s.next
}

func (s *MemoryStore) Close() error {
	return nil
}
