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

package a2a

import (
	"fmt"
	"net/http"
	"time"
)

// DownstreamError reports a failed call to a downstream agent. Status is
// zero when no HTTP response was received.
type DownstreamError struct {
	Agent  string
	Status int
	Body   string
	Err    error
}

func (e *DownstreamError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("agent %s returned HTTP %d: %s", e.Agent, e.Status, truncate(e.Body, 200))
	case e.Err != nil:
		return fmt.Sprintf("agent %s call failed: %v", e.Agent, e.Err)
	default:
		return fmt.Sprintf("agent %s call failed: %s", e.Agent, truncate(e.Body, 200))
	}
}

func (e *DownstreamError) Unwrap() error {
	return e.Err
}

// AuthError is a 401 or 403 from a downstream agent.
type AuthError struct {
	Agent  string
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("agent %s rejected credentials (HTTP %d)", e.Agent, e.Status)
}

// Forbidden reports whether the token was valid but lacked permission.
func (e *AuthError) Forbidden() bool {
	return e.Status == http.StatusForbidden
}

type TimeoutError struct {
	Agent string
	After time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("agent %s timed out after %s", e.Agent, e.After)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
