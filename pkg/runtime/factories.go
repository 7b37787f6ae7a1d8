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

package runtime

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker/v2"

	"github.com/kadirpekel/orgrouter/pkg/config"
	"github.com/kadirpekel/orgrouter/pkg/discovery"
	"github.com/kadirpekel/orgrouter/pkg/httpclient"
	"github.com/kadirpekel/orgrouter/pkg/model"
	"github.com/kadirpekel/orgrouter/pkg/model/anthropic"
	"github.com/kadirpekel/orgrouter/pkg/model/bedrock"
	"github.com/kadirpekel/orgrouter/pkg/model/breaker"
	"github.com/kadirpekel/orgrouter/pkg/model/gemini"
	"github.com/kadirpekel/orgrouter/pkg/model/openai"
	"github.com/kadirpekel/orgrouter/pkg/observability"
	"github.com/kadirpekel/orgrouter/pkg/routing"
)

// DefaultLLMFactory creates the classifier model for the configured
// provider. Provider "none" yields a nil LLM and a nil error.
func DefaultLLMFactory(ctx context.Context, cfg *config.LLMConfig) (model.LLM, error) {
	switch cfg.Provider {
	case config.LLMProviderNone:
		return nil, nil

	case config.LLMProviderBedrock:
		return bedrock.New(ctx, bedrock.Config{
			ModelID:     cfg.Model,
			Region:      cfg.Region,
			Profile:     cfg.Profile,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})

	case config.LLMProviderAnthropic:
		return anthropic.New(anthropic.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			BaseURL:     cfg.BaseURL,
		})

	case config.LLMProviderOpenAI:
		return openai.New(openai.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			BaseURL:     cfg.BaseURL,
		})

	case config.LLMProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
		return openai.New(openai.Config{
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			BaseURL:     baseURL,
			Provider:    model.ProviderOllama,
		})

	case config.LLMProviderGemini:
		return gemini.New(gemini.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			BaseURL:     cfg.BaseURL,
		})

	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// WrapBreaker guards llm with a circuit breaker when enabled. State changes
// are exported as the breaker state gauge.
func WrapBreaker(llm model.LLM, cfg *config.LLMConfig, metrics *observability.Metrics) model.LLM {
	if llm == nil || !cfg.IsBreakerEnabled() {
		return llm
	}

	wrapped := breaker.Wrap(llm, breaker.Config{
		MaxFailures: cfg.Breaker.MaxFailures,
		OpenTimeout: cfg.Breaker.OpenTimeout,
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.SetBreakerState(name, int(to))
		},
	})
	return wrapped
}

// NewClassifier composes the LLM classifier (when there is a model) with the
// keyword fallback. The returned *routing.LLMClassifier is nil in
// keyword-only mode; it is kept so the timeout can be changed on reload.
func NewClassifier(llm model.LLM, cfg *config.RoutingConfig) (routing.Classifier, *routing.LLMClassifier) {
	keywords := routing.NewKeywordClassifier()
	if llm == nil {
		return routing.NewChain(keywords), nil
	}

	llmClassifier := routing.NewLLMClassifier(llm, routing.WithTimeout(cfg.ClassifierTimeout))
	chain := routing.NewChain(llmClassifier, keywords)
	if cfg.IsCrossCheck() {
		chain = chain.WithCrossCheck(keywords)
	}
	return chain, llmClassifier
}

// DownstreamAgents lists the HR and Finance agents in presentation order.
func DownstreamAgents(cfg *config.AgentsConfig) []discovery.Agent {
	return []discovery.Agent{
		{Name: string(routing.TargetHR), BaseURL: cfg.HR.BaseURL()},
		{Name: string(routing.TargetFinance), BaseURL: cfg.Finance.BaseURL()},
	}
}

// NewAgentHTTPClient builds the transport shared by card fetches, agent
// calls and token requests.
func NewAgentHTTPClient(cfg *config.AgentsConfig) (*http.Client, error) {
	var tlsCfg *httpclient.TLSConfig
	if cfg.TLS != nil {
		tlsCfg = &httpclient.TLSConfig{
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
			CACertificate:      cfg.TLS.CACertificate,
		}
	}
	return httpclient.NewHTTPClient(tlsCfg)
}

// NewRegistry builds the card registry. A positive CardTTL selects the
// expiring LRU cache; otherwise cards live for the process lifetime.
func NewRegistry(cfg *config.AgentsConfig, hc *http.Client) *discovery.Registry {
	var cache discovery.Cache = discovery.NewMemoryCache()
	if cfg.CardTTL > 0 {
		cache = discovery.NewExpirableCache(cfg.CardCacheSize, cfg.CardTTL)
	}

	fetcher := discovery.NewFetcher(
		discovery.WithCache(cache),
		discovery.WithFetchTimeout(cfg.CardTimeout),
		discovery.WithHTTPClient(hc, cfg.CardRetries),
	)
	return discovery.NewRegistry(fetcher, DownstreamAgents(cfg)...)
}
