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

package config

import (
	"fmt"
	"time"
)

// DefaultClassifierTimeout bounds one LLM classification call.
const DefaultClassifierTimeout = 5 * time.Second

// RoutingConfig configures query classification.
type RoutingConfig struct {
	// ClassifierTimeout bounds the LLM call. On expiry the keyword
	// classifier decides.
	// Default: 5s
	ClassifierTimeout time.Duration `yaml:"classifier_timeout,omitempty" json:"classifier_timeout,omitempty"`

	// CrossCheck runs the keyword classifier next to a successful LLM
	// decision and flags disagreements. It never changes the target.
	// Default: true
	CrossCheck *bool `yaml:"cross_check,omitempty" json:"cross_check,omitempty"`
}

// SetDefaults applies default values to RoutingConfig.
func (c *RoutingConfig) SetDefaults() {
	if c.ClassifierTimeout == 0 {
		c.ClassifierTimeout = DefaultClassifierTimeout
	}
	if c.CrossCheck == nil {
		c.CrossCheck = BoolPtr(true)
	}
}

// Validate checks the routing configuration.
func (c *RoutingConfig) Validate() error {
	if c.ClassifierTimeout <= 0 {
		return fmt.Errorf("classifier_timeout must be positive")
	}
	if c.ClassifierTimeout > time.Minute {
		return fmt.Errorf("classifier_timeout must not exceed 1m, got %s", c.ClassifierTimeout)
	}
	return nil
}

// IsCrossCheck reports whether LLM decisions are cross-checked.
func (c *RoutingConfig) IsCrossCheck() bool {
	return BoolValue(c.CrossCheck, true)
}
