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
	"strings"
	"time"
)

const (
	DefaultAuthServerID = "default"
	DefaultAudience     = "api://a2a-agents"
	DefaultScope        = "agent.access"
)

// AuthConfig configures JWT validation for inbound requests.
//
// Authentication is disabled by default. When enabled, every endpoint
// except discovery, health and metrics requires a bearer token that carries
// RequiredScope. With an Okta domain the issuer and JWKS URL are derived:
//
//	server:
//	  auth:
//	    enabled: true
//	    domain: dev-123456.okta.com
//	    auth_server_id: default
//	    audience: api://a2a-agents
//
// Any other OIDC provider works with explicit issuer and jwks_url.
type AuthConfig struct {
	// Enabled controls whether authentication is required.
	// Default: false
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Domain is the Okta org domain, e.g. "dev-123456.okta.com".
	Domain string `yaml:"domain,omitempty" json:"domain,omitempty"`

	// AuthServerID is the Okta authorization server.
	// Default: "default"
	AuthServerID string `yaml:"auth_server_id,omitempty" json:"auth_server_id,omitempty"`

	// Issuer is the expected token issuer (iss claim).
	// Default: https://{domain}/oauth2/{auth_server_id}
	Issuer string `yaml:"issuer,omitempty" json:"issuer,omitempty"`

	// JWKSURL is the URL to fetch the JSON Web Key Set from.
	// Default: {issuer}/v1/keys
	JWKSURL string `yaml:"jwks_url,omitempty" json:"jwks_url,omitempty"`

	// Audience is the expected token audience (aud claim).
	// Default: "api://a2a-agents"
	Audience string `yaml:"audience,omitempty" json:"audience,omitempty"`

	// RequiredScope must be present in the scope or scp claim.
	// Default: "agent.access"
	RequiredScope string `yaml:"required_scope,omitempty" json:"required_scope,omitempty"`

	// RefreshInterval is how often to refresh the JWKS.
	// Default: 15m
	RefreshInterval time.Duration `yaml:"refresh_interval,omitempty" json:"refresh_interval,omitempty"`

	// ExcludedPaths are served without a token, in addition to the
	// discovery, health and metrics endpoints.
	ExcludedPaths []string `yaml:"excluded_paths,omitempty" json:"excluded_paths,omitempty"`
}

// SetDefaults applies default values to AuthConfig.
func (c *AuthConfig) SetDefaults() {
	if c.AuthServerID == "" {
		c.AuthServerID = DefaultAuthServerID
	}
	if c.Issuer == "" && c.Domain != "" {
		c.Issuer = oktaIssuer(c.Domain, c.AuthServerID)
	}
	if c.JWKSURL == "" && c.Issuer != "" {
		c.JWKSURL = strings.TrimSuffix(c.Issuer, "/") + "/v1/keys"
	}
	if c.Audience == "" {
		c.Audience = DefaultAudience
	}
	if c.RequiredScope == "" {
		c.RequiredScope = DefaultScope
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = 15 * time.Minute
	}
}

// Validate checks the AuthConfig for errors.
func (c *AuthConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.JWKSURL == "" {
		return fmt.Errorf("jwks_url (or domain) is required when auth is enabled")
	}
	if c.Issuer == "" {
		return fmt.Errorf("issuer (or domain) is required when auth is enabled")
	}
	if c.RefreshInterval < time.Minute {
		return fmt.Errorf("refresh_interval must be at least 1 minute")
	}

	return nil
}

// IsEnabled returns true if authentication is configured and enabled.
func (c *AuthConfig) IsEnabled() bool {
	return c != nil && c.Enabled
}

// ClientAuthConfig configures bearer tokens for calls to downstream agents.
//
// Either a static Token or OAuth2 client credentials are used:
//
//	agents:
//	  auth:
//	    enabled: true
//	    domain: dev-123456.okta.com
//	    client_id: ${OKTA_CLIENT_ID}
//	    client_secret: ${OKTA_CLIENT_SECRET}
type ClientAuthConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Domain and AuthServerID derive TokenURL for Okta.
	Domain       string `yaml:"domain,omitempty" json:"domain,omitempty"`
	AuthServerID string `yaml:"auth_server_id,omitempty" json:"auth_server_id,omitempty"`

	// TokenURL is the OAuth2 token endpoint.
	// Default: https://{domain}/oauth2/{auth_server_id}/v1/token
	TokenURL string `yaml:"token_url,omitempty" json:"token_url,omitempty"`

	ClientID     string `yaml:"client_id,omitempty" json:"client_id,omitempty"`
	ClientSecret string `yaml:"client_secret,omitempty" json:"client_secret,omitempty"`

	// Scopes requested with the client credentials grant.
	// Default: ["agent.access"]
	Scopes []string `yaml:"scopes,omitempty" json:"scopes,omitempty"`

	// Token is a pre-issued bearer token. When set, no token is requested.
	Token string `yaml:"token,omitempty" json:"token,omitempty"`
}

// SetDefaults applies default values to ClientAuthConfig.
func (c *ClientAuthConfig) SetDefaults() {
	if c.AuthServerID == "" {
		c.AuthServerID = DefaultAuthServerID
	}
	if c.TokenURL == "" && c.Domain != "" {
		c.TokenURL = oktaIssuer(c.Domain, c.AuthServerID) + "/v1/token"
	}
	if len(c.Scopes) == 0 {
		c.Scopes = []string{DefaultScope}
	}
}

// Validate checks the ClientAuthConfig for errors.
func (c *ClientAuthConfig) Validate() error {
	if !c.Enabled || c.Token != "" {
		return nil
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("client_id and client_secret are required when auth is enabled without a token")
	}
	if c.TokenURL == "" {
		return fmt.Errorf("token_url (or domain) is required when auth is enabled without a token")
	}
	return nil
}

func oktaIssuer(domain, serverID string) string {
	domain = strings.TrimSuffix(domain, "/")
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	return domain + "/oauth2/" + serverID
}
