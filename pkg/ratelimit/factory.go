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
	"github.com/kadirpekel/orgrouter/pkg/config"
)

// NewLimiterFromConfig creates a Limiter from configuration.
// If rate limiting is disabled, returns nil.
//
// Example config:
//
//	rate_limiting:
//	  enabled: true
//	  requests_per_minute: 60
//	  burst: 10
func NewLimiterFromConfig(cfg *config.RateLimitConfig) *Limiter {
	if cfg == nil || !cfg.IsEnabled() {
		return nil
	}
	return New(Config{
		RequestsPerMinute: cfg.RequestsPerMinute,
		Burst:             cfg.Burst,
		MaxCallers:        cfg.MaxCallers,
		IdleTTL:           cfg.IdleTTL,
	})
}
