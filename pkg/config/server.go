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
	"net"
	"strconv"
	"time"
)

const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8080
	DefaultReadTimeout     = 30 * time.Second
	DefaultShutdownTimeout = 5 * time.Second

	// DefaultRequestTimeout bounds the handling of one inbound query,
	// downstream calls included.
	DefaultRequestTimeout = 150 * time.Second

	// WriteTimeoutMargin is how far the HTTP write deadline sits past the
	// request deadline, so a query that hits its deadline is still answered.
	WriteTimeoutMargin  = 10 * time.Second
	DefaultWriteTimeout = DefaultRequestTimeout + WriteTimeoutMargin
)

// ServerConfig configures the inbound HTTP server.
//
// Example:
//
//	server:
//	  port: 8080
//	  request_timeout: 150s
//	  auth:
//	    enabled: true
//	    domain: dev-123456.okta.com
type ServerConfig struct {
	// Host to bind to.
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Port to listen on.
	Port int `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"minimum=1,maximum=65535,default=8080"`

	// PublicURL is the URL advertised in the agent card.
	// Default: http://localhost:<port>/ when binding to all interfaces.
	PublicURL string `yaml:"public_url,omitempty" json:"public_url,omitempty"`

	ReadTimeout     time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout    time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty"`

	// RequestTimeout is the overall deadline for one routed query.
	// Default: 150s
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty" json:"request_timeout,omitempty"`

	// Auth configures bearer token validation for inbound requests.
	Auth *AuthConfig `yaml:"auth,omitempty" json:"auth,omitempty"`
}

// SetDefaults applies default values to ServerConfig.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = c.RequestTimeout + WriteTimeoutMargin
	}
	if c.Auth != nil {
		c.Auth.SetDefaults()
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("timeouts must be non-negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.WriteTimeout > 0 && c.WriteTimeout <= c.RequestTimeout {
		return fmt.Errorf("write_timeout (%s) must be longer than request_timeout (%s)", c.WriteTimeout, c.RequestTimeout)
	}
	if c.Auth != nil {
		if err := c.Auth.Validate(); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	return nil
}

// Address returns the listen address.
// EffectiveWriteTimeout is the write deadline the HTTP server uses. It is
// never shorter than the request deadline plus WriteTimeoutMargin.
func (c *ServerConfig) EffectiveWriteTimeout() time.Duration {
	req := c.RequestTimeout
	if req <= 0 {
		req = DefaultRequestTimeout
	}
	return max(c.WriteTimeout, req+WriteTimeoutMargin)
}

func (c *ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL returns the externally reachable base URL of the router.
func (c *ServerConfig) URL() string {
	if c.PublicURL != "" {
		return c.PublicURL
	}
	host := c.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Port)) + "/"
}
