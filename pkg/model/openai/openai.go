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

// Package openai implements model.LLM for OpenAI and OpenAI-compatible chat
// completion endpoints (Ollama, vLLM, LiteLLM) using go-openai.
package openai

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kadirpekel/orgrouter/pkg/model"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultOllamaURL   = "http://localhost:11434/v1"
	defaultOllamaModel = "llama3.2"
	defaultMaxTokens   = 256
	defaultTimeout     = 30 * time.Second
)

// Config configures the OpenAI client.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature *float64
	// BaseURL points at an OpenAI-compatible server. Empty means api.openai.com.
	BaseURL string
	Timeout time.Duration

	// Provider tags the client, e.g. model.ProviderOllama for a local server.
	Provider model.Provider
}

type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature *float64
	provider    model.Provider
}

// New creates a new OpenAI-compatible client.
func New(cfg Config) (*Client, error) {
	if cfg.Provider == "" {
		cfg.Provider = model.ProviderOpenAI
	}
	if cfg.Provider == model.ProviderOllama {
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultOllamaURL
		}
		if cfg.Model == "" {
			cfg.Model = defaultOllamaModel
		}
		if cfg.APIKey == "" {
			cfg.APIKey = "ollama"
		}
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		provider:    cfg.Provider,
	}, nil
}

func (c *Client) Name() string {
	return c.model
}

func (c *Client) Provider() model.Provider {
	return c.provider
}

func (c *Client) Close() error {
	return nil
}

func (c *Client) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	chatReq := c.buildRequest(req)

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, &model.ProviderError{Provider: c.provider, Model: c.model, Err: err}
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, model.ErrEmptyResponse
	}

	choice := resp.Choices[0]
	return &model.Response{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: &model.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (c *Client) buildRequest(req *model.Request) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemInstruction,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: req.Config.MaxTokensOr(c.maxTokens),
	}

	temperature := req.Config.TemperatureOr(-1)
	if temperature < 0 && c.temperature != nil {
		temperature = *c.temperature
	}
	switch {
	case temperature == 0:
		// go-openai drops a zero temperature (omitempty), which the API
		// reads as its default of 1.
		chatReq.Temperature = math.SmallestNonzeroFloat32
	case temperature > 0:
		chatReq.Temperature = float32(temperature)
	}

	if req.Config != nil && len(req.Config.StopSequences) > 0 {
		chatReq.Stop = req.Config.StopSequences
	}

	return chatReq
}
