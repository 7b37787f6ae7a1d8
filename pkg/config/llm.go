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
	"time"
)

// LLMProvider identifies the LLM provider type.
type LLMProvider string

const (
	LLMProviderBedrock   LLMProvider = "bedrock"
	LLMProviderAnthropic LLMProvider = "anthropic"
	LLMProviderOpenAI    LLMProvider = "openai"
	LLMProviderGemini    LLMProvider = "gemini"
	LLMProviderOllama    LLMProvider = "ollama"

	// LLMProviderNone routes with the keyword classifier only.
	LLMProviderNone LLMProvider = "none"
)

const (
	DefaultBedrockModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	DefaultAWSRegion    = "us-west-2"

	// Classification answers are a single word.
	DefaultLLMMaxTokens = 16
)

// LLMConfig configures the model used by the classifier.
type LLMConfig struct {
	// Provider type (bedrock, anthropic, openai, gemini, ollama, none).
	Provider LLMProvider `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider,description=LLM provider,enum=bedrock,enum=anthropic,enum=openai,enum=gemini,enum=ollama,enum=none,default=bedrock"`

	// Model name (e.g., a Bedrock model id, "claude-3-5-haiku-latest", "gpt-4o-mini").
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,description=Model identifier"`

	// APIKey for authentication. Supports ${VAR} expansion. Not used by bedrock.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=API key for authentication (use ${ENV_VAR})"`

	// BaseURL overrides the default API endpoint.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL,description=Custom base URL for API endpoint"`

	// Region is the AWS region for bedrock.
	Region string `yaml:"region,omitempty" json:"region,omitempty" jsonschema:"title=AWS Region,default=us-west-2"`

	// Profile selects a shared AWS config profile for bedrock.
	Profile string `yaml:"profile,omitempty" json:"profile,omitempty"`

	// Temperature for generation. Classification should be deterministic.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"title=Temperature,description=Sampling temperature,minimum=0,maximum=2,default=0"`

	// MaxTokens limits response length.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"title=Max Tokens,description=Maximum tokens to generate,minimum=1,default=16"`

	// Breaker guards the provider with a circuit breaker.
	Breaker BreakerConfig `yaml:"breaker,omitempty" json:"breaker,omitempty"`
}

// BreakerConfig configures the LLM circuit breaker.
type BreakerConfig struct {
	// Enabled defaults to true.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// MaxFailures is the number of consecutive failures that open the circuit.
	// Default: 5
	MaxFailures uint32 `yaml:"max_failures,omitempty" json:"max_failures,omitempty"`

	// OpenTimeout is how long the circuit stays open.
	// Default: 30s
	OpenTimeout time.Duration `yaml:"open_timeout,omitempty" json:"open_timeout,omitempty"`
}

// SetDefaults applies default values.
func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = detectProviderFromEnv()
	}

	if c.Model == "" {
		switch c.Provider {
		case LLMProviderBedrock:
			c.Model = DefaultBedrockModel
		case LLMProviderAnthropic:
			c.Model = "claude-3-5-haiku-latest"
		case LLMProviderOpenAI:
			c.Model = "gpt-4o-mini"
		case LLMProviderGemini:
			c.Model = "gemini-2.0-flash"
		case LLMProviderOllama:
			c.Model = "llama3.2"
		}
	}

	if c.APIKey == "" {
		c.APIKey = GetProviderAPIKey(string(c.Provider))
	}

	if c.Provider == LLMProviderBedrock && c.Region == "" {
		c.Region = DefaultAWSRegion
	}

	if c.Temperature == nil {
		temp := 0.0
		c.Temperature = &temp
	}

	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultLLMMaxTokens
	}

	if c.Breaker.Enabled == nil {
		c.Breaker.Enabled = BoolPtr(true)
	}
	if c.Breaker.MaxFailures == 0 {
		c.Breaker.MaxFailures = 5
	}
	if c.Breaker.OpenTimeout == 0 {
		c.Breaker.OpenTimeout = 30 * time.Second
	}
}

// Validate checks the LLM configuration.
func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case LLMProviderBedrock, LLMProviderOllama, LLMProviderNone:
	case LLMProviderAnthropic, LLMProviderOpenAI, LLMProviderGemini:
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for provider %q", c.Provider)
		}
	default:
		return fmt.Errorf("invalid provider %q (valid: bedrock, anthropic, openai, gemini, ollama, none)", c.Provider)
	}

	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}

	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}

	return nil
}

// IsEnabled reports whether an LLM classifier should be built.
func (c *LLMConfig) IsEnabled() bool {
	return c.Provider != LLMProviderNone
}

// IsBreakerEnabled reports whether the provider is wrapped in a circuit breaker.
func (c *LLMConfig) IsBreakerEnabled() bool {
	return BoolValue(c.Breaker.Enabled, true)
}

// detectProviderFromEnv picks a provider from the API keys present in the
// environment and falls back to bedrock, which uses the AWS credential chain.
func detectProviderFromEnv() LLMProvider {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return LLMProviderAnthropic
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return LLMProviderOpenAI
	}
	if os.Getenv("GEMINI_API_KEY") != "" || os.Getenv("GOOGLE_API_KEY") != "" {
		return LLMProviderGemini
	}
	return LLMProviderBedrock
}
