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

// Package ratelimit throttles router callers with a token bucket per
// caller. Callers are keyed by token principal when auth ran first, else by
// client IP.
package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	DefaultRequestsPerMinute = 60
	DefaultBurst             = 10
	DefaultMaxCallers        = 10000
	DefaultIdleTTL           = 10 * time.Minute
)

type Config struct {
	RequestsPerMinute int
	Burst             int
	// MaxCallers bounds the number of buckets kept in memory. The least
	// recently seen caller is evicted first.
	MaxCallers int
	// IdleTTL drops a caller's bucket after this long without requests.
	IdleTTL time.Duration
}

func (c *Config) setDefaults() {
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if c.Burst <= 0 {
		c.Burst = DefaultBurst
	}
	if c.MaxCallers <= 0 {
		c.MaxCallers = DefaultMaxCallers
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = DefaultIdleTTL
	}
}

var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// RateLimitError wraps ErrRateLimitExceeded with the caller's retry delay.
type RateLimitError struct {
	Identifier string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Identifier, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimitExceeded }

func IsRateLimitError(err error) bool {
	return errors.Is(err, ErrRateLimitExceeded)
}

// CheckResult is the outcome of one Allow call.
type CheckResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter hands out one rate.Limiter per identifier.
type Limiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets *expirable.LRU[string, *rate.Limiter]
	now     func() time.Time
}

func New(cfg Config) *Limiter {
	cfg.setDefaults()
	return &Limiter{
		limit:   rate.Limit(float64(cfg.RequestsPerMinute) / 60),
		burst:   cfg.Burst,
		buckets: expirable.NewLRU[string, *rate.Limiter](cfg.MaxCallers, nil, cfg.IdleTTL),
		now:     time.Now,
	}
}

// Allow consumes one token from identifier's bucket if one is available.
// A denied call consumes nothing.
func (l *Limiter) Allow(identifier string) CheckResult {
	bucket := l.bucket(identifier)
	now := l.now()

	res := bucket.ReserveN(now, 1)
	if !res.OK() {
		return CheckResult{Limit: l.burst, RetryAfter: time.Minute}
	}

	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return CheckResult{Limit: l.burst, RetryAfter: delay}
	}

	remaining := int(math.Floor(bucket.TokensAt(now)))
	if remaining < 0 {
		remaining = 0
	}
	return CheckResult{Allowed: true, Limit: l.burst, Remaining: remaining}
}

// Check returns a RateLimitError when identifier is over its limit.
func (l *Limiter) Check(identifier string) error {
	if res := l.Allow(identifier); !res.Allowed {
		return &RateLimitError{Identifier: identifier, RetryAfter: res.RetryAfter}
	}
	return nil
}

// Reset forgets identifier's bucket.
func (l *Limiter) Reset(identifier string) {
	l.buckets.Remove(identifier)
}

func (l *Limiter) Len() int {
	return l.buckets.Len()
}

func (l *Limiter) bucket(identifier string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets.Get(identifier); ok {
		return b
	}
	b := rate.NewLimiter(l.limit, l.burst)
	l.buckets.Add(identifier, b)
	return b
}
