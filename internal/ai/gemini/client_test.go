package gemini

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/ses-matcher/internal/ai"
)

type fakeModels struct {
	resp    *genai.GenerateContentResponse
	err     error
	chunks  []*genai.GenerateContentResponse
	streamE error

	lastModel  string
	lastConfig *genai.GenerateContentConfig
	lastText   string
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.record(model, contents, config)
	return f.resp, f.err
}

func (f *fakeModels) GenerateContentStream(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.record(model, contents, config)
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, chunk := range f.chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		if f.streamE != nil {
			yield(nil, f.streamE)
		}
	}
}

func (f *fakeModels) record(model string, contents []*genai.Content, config *genai.GenerateContentConfig) {
	f.lastModel = model
	f.lastConfig = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.lastText = contents[0].Parts[0].Text
	}
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func newTestGenerator(models *fakeModels) *Generator {
	return &Generator{models: models, modelName: "gemini-2.5-flash", temperature: 0.7, logger: zap.NewNop()}
}

func TestGeneratorComplete(t *testing.T) {
	models := &fakeModels{resp: textResponse("first", "second")}
	g := newTestGenerator(models)

	out, err := g.Complete(context.Background(), "  prompt  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out != "first\nsecond" {
		t.Fatalf("unexpected output: %q", out)
	}
	if models.lastText != "prompt" || models.lastModel != "gemini-2.5-flash" {
		t.Fatalf("unexpected request: model=%q text=%q", models.lastModel, models.lastText)
	}
	if models.lastConfig == nil || models.lastConfig.Temperature == nil || *models.lastConfig.Temperature != 0.7 {
		t.Fatalf("expected temperature to be set, got %+v", models.lastConfig)
	}
}

func TestGeneratorCompleteErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		models *fakeModels
		prompt string
	}{
		{name: "empty prompt", models: &fakeModels{}, prompt: "  "},
		{name: "api error", models: &fakeModels{err: errors.New("boom")}, prompt: "x"},
		{name: "empty response", models: &fakeModels{resp: textResponse("")}, prompt: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := newTestGenerator(tt.models).Complete(context.Background(), tt.prompt); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestGeneratorCompleteStream(t *testing.T) {
	models := &fakeModels{chunks: []*genai.GenerateContentResponse{
		textResponse(`{"candidates"`),
		textResponse(""),
		textResponse(`: []}`),
	}}

	var parts []string
	for chunk, err := range newTestGenerator(models).CompleteStream(context.Background(), "rank") {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		parts = append(parts, chunk)
	}

	if len(parts) != 2 || strings.Join(parts, "") != `{"candidates": []}` {
		t.Fatalf("unexpected chunks: %q", parts)
	}
}

func TestGeneratorCompleteStreamError(t *testing.T) {
	models := &fakeModels{chunks: []*genai.GenerateContentResponse{textResponse("a")}, streamE: errors.New("reset")}

	var gotErr error
	count := 0
	for _, err := range newTestGenerator(models).CompleteStream(context.Background(), "rank") {
		if err != nil {
			gotErr = err
			continue
		}
		count++
	}

	if count != 1 || gotErr == nil {
		t.Fatalf("expected one chunk then an error, got count=%d err=%v", count, gotErr)
	}
}

func TestNewGeneratorRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewGenerator(context.Background(), " ", "", 0.7, nil)
	if !errors.Is(err, ai.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}
