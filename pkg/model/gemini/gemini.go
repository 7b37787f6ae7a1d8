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

// Package gemini is the Google Gemini backend for model.LLM, built on the
// google.golang.org/genai SDK against the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/kadirpekel/orgrouter/pkg/model"
)

const (
	defaultModel   = "gemini-2.0-flash"
	defaultTimeout = 30 * time.Second
)

type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature *float64
	BaseURL     string
	Timeout     time.Duration
}

type Client struct {
	client      *genai.Client
	model       string
	maxTokens   int
	temperature *float64
}

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
			Timeout: &cfg.Timeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (c *Client) Name() string             { return c.model }
func (c *Client) Provider() model.Provider { return model.ProviderGemini }
func (c *Client) Close() error             { return nil }

var _ model.LLM = (*Client)(nil)

func (c *Client) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	out, err := c.client.Models.GenerateContent(ctx, c.model, contents, c.generateConfig(req))
	if err != nil {
		return nil, &model.ProviderError{Provider: model.ProviderGemini, Model: c.model, Err: err}
	}
	return toResponse(out)
}

// generateConfig lets per-request settings override the client defaults.
func (c *Client) generateConfig(req *model.Request) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{}
	if req.SystemInstruction != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	temp := req.Config.TemperatureOr(-1)
	if temp < 0 && c.temperature != nil {
		temp = *c.temperature
	}
	if temp >= 0 {
		gc.Temperature = genai.Ptr(float32(temp))
	}
	if n := req.Config.MaxTokensOr(c.maxTokens); n > 0 {
		gc.MaxOutputTokens = int32(n)
	}
	if req.Config != nil {
		gc.StopSequences = req.Config.StopSequences
	}
	return gc
}

// toResponse keeps the first candidate's answer text; thought parts are
// dropped.
func toResponse(out *genai.GenerateContentResponse) (*model.Response, error) {
	if out == nil || len(out.Candidates) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}
	cand := out.Candidates[0]

	var sb strings.Builder
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if !p.Thought {
				sb.WriteString(p.Text)
			}
		}
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return nil, model.ErrEmptyResponse
	}

	resp := &model.Response{Text: text, FinishReason: strings.ToLower(string(cand.FinishReason))}
	if u := out.UsageMetadata; u != nil {
		resp.Usage = &model.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return resp, nil
}
