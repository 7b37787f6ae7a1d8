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
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultHRHost      = "hr-agent-service.default.svc.cluster.local"
	DefaultFinanceHost = "finance-agent-service.default.svc.cluster.local"
	DefaultAgentPort   = 80

	DefaultCallTimeout   = 120 * time.Second
	DefaultCardTimeout   = 30 * time.Second
	DefaultCardCacheSize = 16
)

// AgentsConfig configures the downstream agents the router relays to.
//
// Example:
//
//	agents:
//	  hr:
//	    host: hr-agent-service
//	    port: 80
//	  finance:
//	    url: https://finance.internal/
//	  call_timeout: 2m
//	  card_ttl: 10m
type AgentsConfig struct {
	HR      EndpointConfig `yaml:"hr,omitempty" json:"hr,omitempty"`
	Finance EndpointConfig `yaml:"finance,omitempty" json:"finance,omitempty"`

	// CallTimeout bounds one message/send call.
	// Default: 120s
	CallTimeout time.Duration `yaml:"call_timeout,omitempty" json:"call_timeout,omitempty"`

	// CardTimeout bounds one agent card fetch.
	// Default: 30s
	CardTimeout time.Duration `yaml:"card_timeout,omitempty" json:"card_timeout,omitempty"`

	// CardTTL expires cached cards. Zero keeps them for the process lifetime.
	CardTTL time.Duration `yaml:"card_ttl,omitempty" json:"card_ttl,omitempty"`

	// CardCacheSize caps the TTL cache. Ignored when CardTTL is zero.
	CardCacheSize int `yaml:"card_cache_size,omitempty" json:"card_cache_size,omitempty"`

	// CardRetries is the number of retries on 429/502/503/504 when fetching cards.
	CardRetries int `yaml:"card_retries,omitempty" json:"card_retries,omitempty"`

	// Auth obtains bearer tokens for outbound calls.
	Auth ClientAuthConfig `yaml:"auth,omitempty" json:"auth,omitempty"`

	// TLS settings for outbound connections.
	TLS *TLSConfig `yaml:"tls,omitempty" json:"tls,omitempty"`
}

// EndpointConfig locates one downstream agent. URL wins over Host/Port.
type EndpointConfig struct {
	Host   string `yaml:"host,omitempty" json:"host,omitempty"`
	Port   int    `yaml:"port,omitempty" json:"port,omitempty"`
	Scheme string `yaml:"scheme,omitempty" json:"scheme,omitempty" jsonschema:"enum=http,enum=https"`
	URL    string `yaml:"url,omitempty" json:"url,omitempty"`
}

// TLSConfig configures outbound TLS.
type TLSConfig struct {
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify,omitempty" json:"insecure_skip_verify,omitempty"`
	CACertificate      string `yaml:"ca_certificate,omitempty" json:"ca_certificate,omitempty"`
}

// SetDefaults applies default values to AgentsConfig.
func (c *AgentsConfig) SetDefaults() {
	c.HR.setDefaults(DefaultHRHost)
	c.Finance.setDefaults(DefaultFinanceHost)

	if c.CallTimeout == 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.CardTimeout == 0 {
		c.CardTimeout = DefaultCardTimeout
	}
	if c.CardTTL > 0 && c.CardCacheSize == 0 {
		c.CardCacheSize = DefaultCardCacheSize
	}
	c.Auth.SetDefaults()
}

// Validate checks the agents configuration.
func (c *AgentsConfig) Validate() error {
	if err := c.HR.Validate(); err != nil {
		return fmt.Errorf("hr: %w", err)
	}
	if err := c.Finance.Validate(); err != nil {
		return fmt.Errorf("finance: %w", err)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout must be positive")
	}
	if c.CardTimeout <= 0 {
		return fmt.Errorf("card_timeout must be positive")
	}
	if c.CardTTL < 0 {
		return fmt.Errorf("card_ttl must be non-negative")
	}
	if c.CardRetries < 0 {
		return fmt.Errorf("card_retries must be non-negative")
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

func (e *EndpointConfig) setDefaults(host string) {
	if e.URL != "" {
		return
	}
	if e.Host == "" {
		e.Host = host
	}
	if e.Port == 0 {
		e.Port = DefaultAgentPort
	}
	if e.Scheme == "" {
		e.Scheme = "http"
	}
}

// Validate checks the endpoint.
func (e *EndpointConfig) Validate() error {
	if e.URL != "" {
		u, err := url.Parse(e.URL)
		if err != nil {
			return fmt.Errorf("invalid url %q: %w", e.URL, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("url %q must use http or https", e.URL)
		}
		if u.Host == "" {
			return fmt.Errorf("url %q has no host", e.URL)
		}
		return nil
	}
	if e.Host == "" {
		return fmt.Errorf("host or url is required")
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", e.Port)
	}
	switch e.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("invalid scheme %q (valid: http, https)", e.Scheme)
	}
	return nil
}

// BaseURL returns the agent's base URL with a trailing slash.
func (e EndpointConfig) BaseURL() string {
	if e.URL != "" {
		return strings.TrimSuffix(e.URL, "/") + "/"
	}
	scheme := e.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + net.JoinHostPort(e.Host, strconv.Itoa(e.Port)) + "/"
}
