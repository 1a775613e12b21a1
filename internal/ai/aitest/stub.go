// Package aitest provides a scripted ai.Client for tests.
package aitest

import (
	"context"
	"iter"
	"sync"

	"github.com/spigell/ses-matcher/internal/ai"
)

// Stub returns scripted responses. Complete pops Responses in order and
// repeats the last one when exhausted. CompleteStream yields Chunks, then
// StreamErr if set.
type Stub struct {
	Responses []string
	Err       error
	Chunks    []string
	StreamErr error

	mu      sync.Mutex
	prompts []string
}

var _ ai.Client = (*Stub)(nil)

func (s *Stub) Complete(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, prompt)
	if s.Err != nil {
		return "", s.Err
	}
	if len(s.Responses) == 0 {
		return "", nil
	}

	resp := s.Responses[0]
	if len(s.Responses) > 1 {
		s.Responses = s.Responses[1:]
	}
	return resp, nil
}

func (s *Stub) CompleteStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	return func(yield func(string, error) bool) {
		for _, chunk := range s.Chunks {
			if ctx.Err() != nil {
				yield("", ctx.Err())
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
		if s.StreamErr != nil {
			yield("", s.StreamErr)
		}
	}
}

func (s *Stub) Provider() ai.Provider { return ai.ProviderOpenAI }

func (s *Stub) Model() string { return "stub-model" }

// Prompts returns every prompt received so far.
func (s *Stub) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Calls is the number of Complete and CompleteStream calls.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}
