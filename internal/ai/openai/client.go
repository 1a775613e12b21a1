package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	sdk "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/ai"
)

// Config holds the connection settings shared by every OpenAI model.
type Config struct {
	APIKey  string
	BaseURL string
}

// Client wraps the OpenAI chat completion API.
type Client struct {
	api         *sdk.Client
	modelName   string
	temperature float32
	logger      *zap.Logger
}

var _ ai.Client = (*Client)(nil)

// NewFactory returns an ai.Factory that builds OpenAI clients from cfg.
func NewFactory(cfg Config, logger *zap.Logger) ai.Factory {
	return func(_ context.Context, inv ai.Invocation) (ai.Client, error) {
		if _, ok := inv.(ai.OpenAIInvocation); !ok {
			return nil, fmt.Errorf("openai factory got %s invocation", inv.Provider())
		}
		spec := inv.Spec()
		return New(cfg, spec.ModelID, spec.Temperature, logger)
	}
}

func New(cfg Config, model string, temperature float32, logger *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key: %w", ai.ErrMissingCredentials)
	}

	if model = strings.TrimSpace(model); model == "" {
		return nil, errors.New("openai model is required")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		api:         sdk.NewClientWithConfig(newClientConfig(apiKey, cfg.BaseURL)),
		modelName:   model,
		temperature: temperature,
		logger:      logger,
	}, nil
}

func newClientConfig(apiKey, baseURL string) sdk.ClientConfig {
	clientCfg := sdk.DefaultConfig(apiKey)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return clientCfg
}

func (c *Client) request(prompt string) sdk.ChatCompletionRequest {
	return sdk.ChatCompletionRequest{
		Model:       c.modelName,
		Temperature: c.temperature,
		Messages: []sdk.ChatCompletionMessage{{
			Role:    sdk.ChatMessageRoleUser,
			Content: prompt,
		}},
	}
}

// Complete sends the prompt and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	resp, err := c.api.CreateChatCompletion(ctx, c.request(prompt))
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("openai api returned no choices")
	}

	output := strings.TrimSpace(resp.Choices[0].Message.Content)
	if output == "" {
		return "", errors.New("openai api returned empty response")
	}

	c.logger.Debug("openai completion usage",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return output, nil
}

// CompleteStream yields content deltas as they arrive.
func (c *Client) CompleteStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		prompt = strings.TrimSpace(prompt)
		if prompt == "" {
			yield("", errors.New("prompt must not be empty"))
			return
		}

		req := c.request(prompt)
		req.Stream = true

		stream, err := c.api.CreateChatCompletionStream(ctx, req)
		if err != nil {
			yield("", fmt.Errorf("create chat completion stream: %w", err))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("receive chat completion chunk: %w", err))
				return
			}

			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !yield(choice.Delta.Content, nil) {
					return
				}
			}
		}
	}
}

func (c *Client) Provider() ai.Provider { return ai.ProviderOpenAI }

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.modelName
}
