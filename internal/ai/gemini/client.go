package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/ses-matcher/internal/ai"
)

const (
	defaultModel = "gemini-pro-latest"
)

// contentModels is the subset of *genai.Models the generator calls.
type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// Generator wraps the Google GenAI client to provide simple prompt-based interactions.
type Generator struct {
	models      contentModels
	modelName   string
	temperature float32
	logger      *zap.Logger
}

var _ ai.Client = (*Generator)(nil)

// NewFactory returns an ai.Factory for the ai_studio provider.
func NewFactory(apiKey string, logger *zap.Logger) ai.Factory {
	return func(ctx context.Context, inv ai.Invocation) (ai.Client, error) {
		if _, ok := inv.(ai.AIStudioInvocation); !ok {
			return nil, fmt.Errorf("gemini factory got %s invocation", inv.Provider())
		}
		spec := inv.Spec()
		return NewGenerator(ctx, apiKey, spec.ModelID, spec.Temperature, logger)
	}
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, temperature float32, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key: %w", ai.ErrMissingCredentials)
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{models: client.Models, modelName: model, temperature: temperature, logger: logger}, nil
}

// Complete sends the prompt to Gemini and returns the joined textual response.
func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	resp, err := g.models.GenerateContent(ctx, g.modelName, genai.Text(prompt), g.config())
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	output := strings.TrimSpace(joinParts(resp, "\n"))
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

// CompleteStream yields text fragments from GenerateContentStream.
func (g *Generator) CompleteStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if g == nil || g.models == nil {
			yield("", errors.New("gemini generator is not initialized"))
			return
		}

		prompt = strings.TrimSpace(prompt)
		if prompt == "" {
			yield("", errors.New("prompt must not be empty"))
			return
		}

		for resp, err := range g.models.GenerateContentStream(ctx, g.modelName, genai.Text(prompt), g.config()) {
			if err != nil {
				yield("", fmt.Errorf("generate content stream: %w", err))
				return
			}

			chunk := joinParts(resp, "")
			if chunk == "" {
				continue
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

func (g *Generator) config() *genai.GenerateContentConfig {
	temperature := g.temperature
	return &genai.GenerateContentConfig{Temperature: &temperature}
}

// joinParts concatenates the text parts of every candidate. Streamed chunks
// are joined without a separator so that fragments stay contiguous.
func joinParts(resp *genai.GenerateContentResponse, sep string) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Text == "" || part.Thought {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString(sep)
			}
			builder.WriteString(part.Text)
		}
	}

	return builder.String()
}

func (g *Generator) Provider() ai.Provider { return ai.ProviderAIStudio }

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}
