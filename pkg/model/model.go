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

// Package model defines the LLM interface used for query classification.
//
// The router only needs one-shot text completion: a system instruction, a
// single user prompt and a short text answer. Backends live in the
// subpackages (bedrock, anthropic, openai, gemini); breaker wraps any of
// them with a circuit breaker.
package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// LLM is the interface for language models.
type LLM interface {
	// Name returns the model identifier.
	Name() string

	// Provider returns the provider type.
	Provider() Provider

	// Generate produces a single, complete response for req.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Close releases any resources held by the LLM.
	Close() error
}

// Provider identifies the LLM provider.
type Provider string

const (
	ProviderBedrock   Provider = "bedrock"
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderOllama    Provider = "ollama"
	ProviderUnknown   Provider = "unknown"
)

// ParseProvider maps a configured provider name to a Provider.
func ParseProvider(s string) Provider {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderBedrock, ProviderAnthropic, ProviderOpenAI, ProviderGemini, ProviderOllama:
		return p
	default:
		return ProviderUnknown
	}
}

// Request contains the input for an LLM call.
type Request struct {
	// SystemInstruction is sent as the system prompt where the provider
	// supports one, and prepended to the prompt otherwise.
	SystemInstruction string

	// Prompt is the user turn.
	Prompt string

	Config *GenerateConfig
}

// GenerateConfig contains configuration for generation.
type GenerateConfig struct {
	// Temperature controls randomness. Classification runs at 0.
	Temperature *float64

	// MaxTokens limits the response length.
	MaxTokens *int

	StopSequences []string
}

// Response is the output of an LLM call.
type Response struct {
	Text         string
	FinishReason string
	Usage        *Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

var (
	// ErrEmptyResponse is returned by backends when the model produced no text.
	ErrEmptyResponse = errors.New("model returned an empty response")
	ErrRateLimited   = errors.New("model rate limited")
	ErrUnauthorized  = errors.New("model credentials rejected")
	ErrUnavailable   = errors.New("model unavailable")
)

// ProviderError wraps a backend failure with the provider that raised it.
type ProviderError struct {
	Provider Provider
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// TemperatureOr returns the configured temperature or def.
func (c *GenerateConfig) TemperatureOr(def float64) float64 {
	if c == nil || c.Temperature == nil {
		return def
	}
	return *c.Temperature
}

// MaxTokensOr returns the configured token limit or def.
func (c *GenerateConfig) MaxTokensOr(def int) int {
	if c == nil || c.MaxTokens == nil || *c.MaxTokens <= 0 {
		return def
	}
	return *c.MaxTokens
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}
