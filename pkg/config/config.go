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

// Package config loads and validates orgrouter configuration.
//
// Configuration is read from a provider (file, consul, etcd, zookeeper),
// expanded against the environment, decoded into Config and completed with
// defaults. With no source at all, Default returns a config that matches a
// stock cluster deployment and environment overrides still apply.
package config

import (
	"fmt"

	"github.com/kadirpekel/orgrouter/pkg/observability"
)

// Config is the root configuration.
type Config struct {
	// Version of the config format.
	Version string `yaml:"version,omitempty" json:"version,omitempty"`

	// Name of this router instance, used in the agent card.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Server configures the inbound HTTP surface.
	Server ServerConfig `yaml:"server,omitempty" json:"server,omitempty"`

	// Agents configures the downstream HR and Finance agents.
	Agents AgentsConfig `yaml:"agents,omitempty" json:"agents,omitempty"`

	// Routing configures query classification.
	Routing RoutingConfig `yaml:"routing,omitempty" json:"routing,omitempty"`

	// LLM configures the model used by the classifier.
	LLM LLMConfig `yaml:"llm,omitempty" json:"llm,omitempty"`

	Logger LoggerConfig `yaml:"logger,omitempty" json:"logger,omitempty"`

	// Databases are named SQL connections referenced by other sections.
	Databases map[string]*DatabaseConfig `yaml:"databases,omitempty" json:"databases,omitempty"`

	// Audit configures the routing audit trail.
	Audit *AuditConfig `yaml:"audit,omitempty" json:"audit,omitempty"`

	// RateLimiting configures per-caller throttling of inbound requests.
	RateLimiting *RateLimitConfig `yaml:"rate_limiting,omitempty" json:"rate_limiting,omitempty"`

	Observability observability.Config `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// DefaultName is the router's name when none is configured.
const DefaultName = "Admin Agent"

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults applies default values to all sections.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Databases == nil {
		c.Databases = make(map[string]*DatabaseConfig)
	}

	c.Server.SetDefaults()
	c.Agents.SetDefaults()
	c.Routing.SetDefaults()
	c.LLM.SetDefaults()
	c.Logger.SetDefaults()

	for _, db := range c.Databases {
		if db != nil {
			db.SetDefaults()
		}
	}
	if c.Audit != nil {
		c.Audit.SetDefaults()
	}
	if c.RateLimiting != nil {
		c.RateLimiting.SetDefaults()
	}

	c.Observability.SetDefaults()
	if c.Observability.Tracing.ServiceVersion == "" {
		c.Observability.Tracing.ServiceVersion = c.Version
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Agents.Validate(); err != nil {
		return fmt.Errorf("agents: %w", err)
	}
	if err := c.Routing.Validate(); err != nil {
		return fmt.Errorf("routing: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	for name, db := range c.Databases {
		if db == nil {
			return fmt.Errorf("databases.%s: is empty", name)
		}
		if err := db.Validate(); err != nil {
			return fmt.Errorf("databases.%s: %w", name, err)
		}
	}

	if c.Audit != nil {
		if err := c.Audit.Validate(); err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		if c.Audit.IsEnabled() && c.Audit.Backend == AuditBackendSQL {
			if _, ok := c.GetDatabase(c.Audit.Database); !ok {
				return fmt.Errorf("audit: database %q is not defined in databases", c.Audit.Database)
			}
		}
	}

	if c.RateLimiting != nil {
		if err := c.RateLimiting.Validate(); err != nil {
			return fmt.Errorf("rate_limiting: %w", err)
		}
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}

	return nil
}

// GetDatabase returns the named database config.
func (c *Config) GetDatabase(name string) (*DatabaseConfig, bool) {
	if c.Databases == nil || name == "" {
		return nil, false
	}
	db, ok := c.Databases[name]
	return db, ok && db != nil
}

// BoolPtr is used for optional booleans whose zero value is not the default.
func BoolPtr(b bool) *bool { return &b }

// BoolValue dereferences b, falling back to def when unset.
func BoolValue(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
