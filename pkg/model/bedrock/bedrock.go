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

// Package bedrock implements model.LLM on the AWS Bedrock Converse API.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"github.com/kadirpekel/orgrouter/pkg/model"
)

const (
	DefaultModelID   = "anthropic.claude-3-sonnet-20240229-v1:0"
	DefaultRegion    = "us-west-2"
	defaultMaxTokens = 256
)

// converseAPI is the slice of the Bedrock runtime client this package uses.
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type Config struct {
	ModelID     string
	Region      string
	Profile     string
	MaxTokens   int
	Temperature *float64
}

type Client struct {
	client      converseAPI
	modelID     string
	maxTokens   int
	temperature *float64
}

// New creates a Bedrock client using the default AWS credential chain
// (environment, shared config, IRSA/instance role).
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newWithClient(bedrockruntime.NewFromConfig(awsCfg), cfg), nil
}

func newWithClient(client converseAPI, cfg Config) *Client {
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &Client{
		client:      client,
		modelID:     cfg.ModelID,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

func (c *Client) Name() string {
	return c.modelID
}

func (c *Client) Provider() model.Provider {
	return model.ProviderBedrock
}

func (c *Client) Close() error {
	return nil
}

func (c *Client) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	output, err := c.client.Converse(ctx, c.buildInput(req))
	if err != nil {
		return nil, &model.ProviderError{Provider: model.ProviderBedrock, Model: c.modelID, Err: mapError(err)}
	}
	return parseOutput(output)
}

func (c *Client) buildInput(req *model.Request) *bedrockruntime.ConverseInput {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.modelID),
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: req.Prompt}},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens: aws.Int32(int32(req.Config.MaxTokensOr(c.maxTokens))),
		},
	}

	if req.SystemInstruction != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.SystemInstruction},
		}
	}

	temperature := req.Config.TemperatureOr(-1)
	if temperature < 0 && c.temperature != nil {
		temperature = *c.temperature
	}
	if temperature >= 0 {
		input.InferenceConfig.Temperature = aws.Float32(float32(temperature))
	}

	if req.Config != nil && len(req.Config.StopSequences) > 0 {
		input.InferenceConfig.StopSequences = req.Config.StopSequences
	}

	return input
}

func parseOutput(output *bedrockruntime.ConverseOutput) (*model.Response, error) {
	var text strings.Builder
	if outMsg, ok := output.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range outMsg.Value.Content {
			if b, ok := block.(*types.ContentBlockMemberText); ok {
				text.WriteString(b.Value)
			}
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, model.ErrEmptyResponse
	}

	resp := &model.Response{
		Text:         text.String(),
		FinishReason: string(output.StopReason),
	}
	if output.Usage != nil {
		in := int(aws.ToInt32(output.Usage.InputTokens))
		out := int(aws.ToInt32(output.Usage.OutputTokens))
		resp.Usage = &model.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
	}
	return resp, nil
}

func mapError(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode() {
	case "ThrottlingException", "TooManyRequestsException", "ServiceQuotaExceededException":
		return fmt.Errorf("%w: %w", model.ErrRateLimited, err)
	case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
		return fmt.Errorf("%w: %w", model.ErrUnauthorized, err)
	case "ModelNotReadyException", "ServiceUnavailableException", "InternalServerException", "ModelTimeoutException":
		return fmt.Errorf("%w: %w", model.ErrUnavailable, err)
	default:
		return err
	}
}
