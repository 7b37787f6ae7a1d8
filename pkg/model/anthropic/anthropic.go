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

// Package anthropic provides an Anthropic Claude LLM implementation backed
// by the official anthropic-sdk-go client.
package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kadirpekel/orgrouter/pkg/model"
)

const (
	defaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 256
	defaultTimeout   = 30 * time.Second
)

// Config configures the Anthropic client.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature *float64
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
}

// Client is an Anthropic LLM implementation.
type Client struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature *float64
}

// New creates a new Anthropic client.
func New(cfg Config) (*Client, error) {
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

	options := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client:      anthropic.NewClient(options...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (c *Client) Name() string {
	return c.model
}

func (c *Client) Provider() model.Provider {
	return model.ProviderAnthropic
}

func (c *Client) Close() error {
	return nil
}

func (c *Client) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(req.Config.MaxTokensOr(c.maxTokens)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}

	if req.SystemInstruction != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemInstruction}}
	}

	if req.Config != nil && req.Config.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Config.Temperature)
	} else if c.temperature != nil {
		params.Temperature = anthropic.Float(*c.temperature)
	}
	if req.Config != nil && len(req.Config.StopSequences) > 0 {
		params.StopSequences = req.Config.StopSequences
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, &model.ProviderError{Provider: model.ProviderAnthropic, Model: c.model, Err: err}
	}

	return convertResponse(msg)
}

func convertResponse(msg *anthropic.Message) (*model.Response, error) {
	var textParts []string
	for i := range msg.Content {
		block := &msg.Content[i]
		if block.Type == "text" {
			textParts = append(textParts, block.Text)
		}
	}

	text := strings.Join(textParts, "")
	if strings.TrimSpace(text) == "" {
		return nil, model.ErrEmptyResponse
	}

	return &model.Response{
		Text:         text,
		FinishReason: string(msg.StopReason),
		Usage: &model.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}
