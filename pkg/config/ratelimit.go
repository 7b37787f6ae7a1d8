// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
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

// RateLimitConfig configures per-caller throttling of inbound queries.
//
// Callers are identified by the JWT subject when auth is enabled and by
// remote address otherwise. Each caller gets a token bucket refilled at
// RequestsPerMinute and holding at most Burst requests.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// RequestsPerMinute is the sustained rate per caller.
	// Default: 60
	RequestsPerMinute int `yaml:"requests_per_minute,omitempty" json:"requests_per_minute,omitempty"`

	// Burst is the bucket size.
	// Default: 10
	Burst int `yaml:"burst,omitempty" json:"burst,omitempty"`

	// MaxCallers caps the number of tracked buckets.
	// Default: 10000
	MaxCallers int `yaml:"max_callers,omitempty" json:"max_callers,omitempty"`

	// IdleTTL drops a caller's bucket after this long without requests.
	// Default: 10m
	IdleTTL time.Duration `yaml:"idle_ttl,omitempty" json:"idle_ttl,omitempty"`

	// ExcludedPaths are never throttled.
	ExcludedPaths []string `yaml:"excluded_paths,omitempty" json:"excluded_paths,omitempty"`
}

// IsEnabled returns true if rate limiting is enabled.
func (c *RateLimitConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// SetDefaults sets default values for RateLimitConfig.
func (c *RateLimitConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(false)
	}
	if c.RequestsPerMinute == 0 {
		c.RequestsPerMinute = 60
	}
	if c.Burst == 0 {
		c.Burst = 10
	}
	if c.MaxCallers == 0 {
		c.MaxCallers = 10000
	}
	if c.IdleTTL == 0 {
		c.IdleTTL = 10 * time.Minute
	}
}

// Validate validates the RateLimitConfig.
func (c *RateLimitConfig) Validate() error {
	if !c.IsEnabled() {
		return nil
	}
	if c.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests_per_minute must be positive")
	}
	if c.Burst <= 0 {
		return fmt.Errorf("burst must be positive")
	}
	if c.MaxCallers < 0 {
		return fmt.Errorf("max_callers must be non-negative")
	}
	if c.IdleTTL < 0 {
		return fmt.Errorf("idle_ttl must be non-negative")
	}
	return nil
}
