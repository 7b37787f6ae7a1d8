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

package ratelimit

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/kadirpekel/orgrouter/pkg/auth"
)

// IdentifierFunc keys a request to a bucket. An empty key skips limiting.
type IdentifierFunc func(r *http.Request) string

// CallerIdentifier prefers the token principal stored by auth.Middleware.
func CallerIdentifier(r *http.Request) string {
	if caller := auth.ClaimsFromContext(r.Context()).Caller(); caller != "" {
		return "caller:" + caller
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return "ip:" + host
	}
	return "ip:" + r.RemoteAddr
}

type MiddlewareConfig struct {
	Limiter        *Limiter
	IdentifierFunc IdentifierFunc
	ExcludedPaths  []string
	// OnLimited runs before the 429 is written.
	OnLimited func(r *http.Request, identifier string)
}

type limitedBody struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterSeconds int64  `json:"retry_after_seconds"`
}

// Middleware answers 429 with Retry-After once a caller's bucket is empty.
// Every limited response also reports X-RateLimit-Limit and
// X-RateLimit-Remaining.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	identify := cfg.IdentifierFunc
	if identify == nil {
		identify = CallerIdentifier
	}
	skip := make(map[string]struct{}, len(cfg.ExcludedPaths))
	for _, p := range cfg.ExcludedPaths {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			id := identify(r)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			res := cfg.Limiter.Allow(id)
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if res.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			rle := &RateLimitError{Identifier: id, RetryAfter: res.RetryAfter}
			slog.Warn("Rate limited", "path", r.URL.Path, "error", rle)
			if cfg.OnLimited != nil {
				cfg.OnLimited(r, id)
			}

			secs := max(int64(math.Ceil(res.RetryAfter.Seconds())), 1)
			h.Set("Content-Type", "application/json")
			h.Set("Retry-After", strconv.FormatInt(secs, 10))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(limitedBody{
				Error:             "rate_limit_exceeded",
				Message:           "too many requests",
				RetryAfterSeconds: secs,
			})
		})
	}
}
