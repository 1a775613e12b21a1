// Package embedding turns text into vectors for the vector store.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const DefaultModel = "text-embedding-3-small"

// Embedder converts free text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// OpenAI embeds text through the OpenAI embeddings endpoint.
type OpenAI struct {
	api    *sdk.Client
	model  string
	logger *zap.Logger
}

var _ Embedder = (*OpenAI)(nil)

func NewOpenAI(apiKey, baseURL, model string, logger *zap.Logger) (*OpenAI, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required for embeddings")
	}

	if model = strings.TrimSpace(model); model == "" {
		model = DefaultModel
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := sdk.DefaultConfig(apiKey)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &OpenAI{api: sdk.NewClientWithConfig(cfg), model: model, logger: logger}, nil
}

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text to embed must not be empty")
	}

	resp, err := o.api.CreateEmbeddings(ctx, sdk.EmbeddingRequest{
		Input: []string{text},
		Model: sdk.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("embeddings api returned no vectors")
	}

	o.logger.Debug("embedded text",
		zap.String("embedding_model", o.model),
		zap.Int("dimension", len(resp.Data[0].Embedding)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
	)

	return resp.Data[0].Embedding, nil
}

func (o *OpenAI) Model() string { return o.model }
