// Package ai holds the LLM client contract shared by every provider, the
// provider/model catalog and the selector that turns a (provider, model) pair
// into a ready client.
package ai

import (
	"context"
	"iter"
)

// Client is a text completion backend.
type Client interface {
	// Complete sends the prompt and returns the whole response text.
	Complete(ctx context.Context, prompt string) (string, error)
	// CompleteStream yields response fragments in arrival order. A non-nil
	// error ends the sequence.
	CompleteStream(ctx context.Context, prompt string) iter.Seq2[string, error]
	Provider() Provider
	Model() string
}
