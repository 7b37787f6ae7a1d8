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
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadEnvFiles loads .env.local and then .env from the working directory.
// Variables already set in the environment are not overwritten.
func LoadEnvFiles() error {
	envFiles := []string{".env.local", ".env"}

	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	return nil
}

// GetProviderAPIKey returns the API key for an LLM provider from the
// environment.
func GetProviderAPIKey(providerType string) string {
	switch LLMProvider(providerType) {
	case LLMProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case LLMProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case LLMProviderGemini:
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	default:
		return ""
	}
}

// ApplyEnvOverrides applies the deployment environment on top of the
// decoded config. It runs before SetDefaults so derived values (Okta
// issuer, token URL) follow the overrides.
//
// Recognised variables:
//
//	HR_HOST, HR_PORT, FINANCE_HOST, FINANCE_PORT   downstream agents
//	LLM_PROVIDER, BEDROCK_MODEL_ID, AWS_REGION     classifier model
//	OKTA_DOMAIN, OKTA_AUTH_SERVER_ID, OKTA_AUDIENCE,
//	OKTA_SCOPE, OKTA_CLIENT_ID, OKTA_CLIENT_SECRET auth
//	LOG_LEVEL, LOG_FILE, LOG_FORMAT                logging
func (c *Config) ApplyEnvOverrides() error {
	if err := applyEndpointEnv(&c.Agents.HR, "HR"); err != nil {
		return err
	}
	if err := applyEndpointEnv(&c.Agents.Finance, "FINANCE"); err != nil {
		return err
	}

	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = LLMProvider(v)
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" && (c.LLM.Provider == "" || c.LLM.Provider == LLMProviderBedrock) {
		c.LLM.Model = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.LLM.Region = v
	}

	c.applyOktaEnv()

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		c.Logger.File = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logger.Format = v
	}

	return nil
}

func applyEndpointEnv(e *EndpointConfig, prefix string) error {
	if v := os.Getenv(prefix + "_HOST"); v != "" {
		e.Host = v
		e.URL = ""
	}
	if v := os.Getenv(prefix + "_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s_PORT %q: %w", prefix, v, err)
		}
		e.Port = port
		e.URL = ""
	}
	return nil
}

// applyOktaEnv enables inbound validation when OKTA_DOMAIN is set and
// outbound client credentials when a client id and secret are also set.
func (c *Config) applyOktaEnv() {
	domain := os.Getenv("OKTA_DOMAIN")
	serverID := os.Getenv("OKTA_AUTH_SERVER_ID")

	if domain != "" {
		if c.Server.Auth == nil {
			c.Server.Auth = &AuthConfig{}
		}
		c.Server.Auth.Enabled = true
		c.Server.Auth.Domain = domain
		if serverID != "" {
			c.Server.Auth.AuthServerID = serverID
		}
		if v := os.Getenv("OKTA_AUDIENCE"); v != "" {
			c.Server.Auth.Audience = v
		}
		if v := os.Getenv("OKTA_SCOPE"); v != "" {
			c.Server.Auth.RequiredScope = v
		}
	}

	clientID := os.Getenv("OKTA_CLIENT_ID")
	clientSecret := os.Getenv("OKTA_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		return
	}

	out := &c.Agents.Auth
	out.Enabled = true
	out.ClientID = clientID
	out.ClientSecret = clientSecret
	if domain != "" {
		out.Domain = domain
	}
	if serverID != "" {
		out.AuthServerID = serverID
	}
	if v := os.Getenv("OKTA_SCOPE"); v != "" {
		out.Scopes = []string{v}
	}
}
