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

import "fmt"

const (
	AuditBackendMemory = "memory"
	AuditBackendSQL    = "sql"
)

// AuditConfig configures the routing audit trail.
//
// Each routed query leaves one record with its correlation id, caller,
// decision and per-agent outcome. Query text is never stored.
//
//	audit:
//	  enabled: true
//	  backend: sql
//	  database: main
type AuditConfig struct {
	// Enabled defaults to true when the section is present.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Backend is "memory" (default) or "sql".
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty" jsonschema:"enum=memory,enum=sql,default=memory"`

	// Database references an entry in the databases section.
	// Required when Backend is "sql".
	Database string `yaml:"database,omitempty" json:"database,omitempty"`

	// Capacity is the number of records kept by the memory backend.
	// Default: 1000
	Capacity int `yaml:"capacity,omitempty" json:"capacity,omitempty"`
}

// IsEnabled returns true if auditing is enabled.
func (c *AuditConfig) IsEnabled() bool {
	return c != nil && BoolValue(c.Enabled, true)
}

// SetDefaults applies default values to AuditConfig.
func (c *AuditConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.Backend == "" {
		c.Backend = AuditBackendMemory
	}
	if c.Backend == AuditBackendMemory && c.Capacity == 0 {
		c.Capacity = 1000
	}
}

// Validate checks the AuditConfig for errors.
func (c *AuditConfig) Validate() error {
	if !c.IsEnabled() {
		return nil
	}
	switch c.Backend {
	case AuditBackendMemory, "":
		if c.Capacity < 0 {
			return fmt.Errorf("capacity must be non-negative")
		}
	case AuditBackendSQL:
		if c.Database == "" {
			return fmt.Errorf("backend 'sql' requires a database reference")
		}
	default:
		return fmt.Errorf("invalid backend %q (valid: memory, sql)", c.Backend)
	}
	return nil
}
