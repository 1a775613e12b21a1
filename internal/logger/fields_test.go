package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLLMFields(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		expect   map[string]string
	}{
		{name: "both", provider: " openai ", model: "gpt-4o-mini", expect: map[string]string{FieldProvider: "openai", FieldModel: "gpt-4o-mini"}},
		{name: "model only", provider: "  ", model: "gemini-pro-latest", expect: map[string]string{FieldModel: "gemini-pro-latest"}},
		{name: "none", expect: map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := LLMFields(tt.provider, tt.model)
			if len(fields) != len(tt.expect) {
				t.Fatalf("expected %d fields, got %d", len(tt.expect), len(fields))
			}
			for _, f := range fields {
				if tt.expect[f.Key] != f.String {
					t.Fatalf("unexpected field %s=%q", f.Key, f.String)
				}
			}
		})
	}
}

func TestWithLLM(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithLLM(zap.New(core), "ai_studio", "gemini-flash-latest").Info("record structured", RecordID(" Y1 "), Flow("format_candidates"))

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	want := map[string]string{
		FieldProvider: "ai_studio",
		FieldModel:    "gemini-flash-latest",
		FieldRecordID: "Y1",
		FieldFlow:     "format_candidates",
	}
	for k, v := range want {
		if ctx[k] != v {
			t.Fatalf("expected %s=%q, got %v", k, v, ctx[k])
		}
	}

	// nil logger falls back to a no-op logger
	WithLLM(nil, "openai", "gpt-4o").Info("ignored", RequestID("req-1"))
}
