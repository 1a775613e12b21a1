//go:build bedrock

package bedrock

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/ai"
)

type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Client calls Bedrock models through the Converse API.
type Client struct {
	api         converseAPI
	modelID     string
	temperature float32
	logger      *zap.Logger
}

var _ ai.Client = (*Client)(nil)

// NewFactory returns an ai.Factory for the bedrock provider. regionOverride,
// when set, replaces the region from the catalog.
func NewFactory(regionOverride string, logger *zap.Logger) ai.Factory {
	return func(ctx context.Context, inv ai.Invocation) (ai.Client, error) {
		b, ok := inv.(ai.BedrockInvocation)
		if !ok {
			return nil, fmt.Errorf("bedrock factory got %s invocation", inv.Provider())
		}

		region := strings.TrimSpace(regionOverride)
		if region == "" {
			region = b.Region
		}

		return New(ctx, region, b.ModelID, b.Temperature, logger)
	}
}

func New(ctx context.Context, region, modelID string, temperature float32, logger *zap.Logger) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return nil, fmt.Errorf("aws credentials: %w: %w", ai.ErrMissingCredentials, err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		api:         bedrockruntime.NewFromConfig(cfg),
		modelID:     modelID,
		temperature: temperature,
		logger:      logger.With(zap.String("aws_region", region)),
	}, nil
}

func (c *Client) messages(prompt string) []types.Message {
	return []types.Message{{
		Role:    types.ConversationRoleUser,
		Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
	}}
}

func (c *Client) inference() *types.InferenceConfiguration {
	return &types.InferenceConfiguration{Temperature: aws.Float32(c.temperature)}
}

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(c.modelID),
		Messages:        c.messages(prompt),
		InferenceConfig: c.inference(),
	})
	if err != nil {
		return "", fmt.Errorf("converse: %w", err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("unexpected converse output %T", out.Output)
	}

	var builder strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			builder.WriteString(text.Value)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("bedrock returned empty response")
	}

	return output, nil
}

func (c *Client) CompleteStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		prompt = strings.TrimSpace(prompt)
		if prompt == "" {
			yield("", errors.New("prompt must not be empty"))
			return
		}

		out, err := c.api.ConverseStream(ctx, &bedrockruntime.ConverseStreamInput{
			ModelId:         aws.String(c.modelID),
			Messages:        c.messages(prompt),
			InferenceConfig: c.inference(),
		})
		if err != nil {
			yield("", fmt.Errorf("converse stream: %w", err))
			return
		}

		stream := out.GetStream()
		defer stream.Close()

		for event := range stream.Events() {
			delta, ok := event.(*types.ConverseStreamOutputMemberContentBlockDelta)
			if !ok {
				continue
			}
			text, ok := delta.Value.Delta.(*types.ContentBlockDeltaMemberText)
			if !ok || text.Value == "" {
				continue
			}
			if !yield(text.Value, nil) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("converse stream: %w", err))
		}
	}
}

func (c *Client) Provider() ai.Provider { return ai.ProviderBedrock }

func (c *Client) Model() string { return c.modelID }
