//go:build bedrock

package bedrock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"go.uber.org/zap"
)

type fakeConverse struct {
	out  *bedrockruntime.ConverseOutput
	err  error
	last *bedrockruntime.ConverseInput
}

func (f *fakeConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.last = in
	return f.out, f.err
}

func (f *fakeConverse) ConverseStream(context.Context, *bedrockruntime.ConverseStreamInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error) {
	return nil, errors.New("not used")
}

func TestClientComplete(t *testing.T) {
	fake := &fakeConverse{out: &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role: types.ConversationRoleAssistant,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: `{"candidates":`},
				&types.ContentBlockMemberText{Value: `[]}`},
			},
		}},
	}}

	c := &Client{api: fake, modelID: "anthropic.claude-3-haiku-20240307-v1:0", temperature: 0.7, logger: zap.NewNop()}

	out, err := c.Complete(context.Background(), "rank")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"candidates":[]}` {
		t.Fatalf("unexpected output %q", out)
	}
	if *fake.last.ModelId != c.modelID || *fake.last.InferenceConfig.Temperature != 0.7 {
		t.Fatalf("unexpected request: %+v", fake.last)
	}
}

func TestClientCompleteStreamSurfacesError(t *testing.T) {
	c := &Client{api: &fakeConverse{}, modelID: "m", logger: zap.NewNop()}

	var gotErr error
	for _, err := range c.CompleteStream(context.Background(), "rank") {
		gotErr = err
	}
	if gotErr == nil {
		t.Fatal("expected error")
	}
}
