package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Field keys shared by every component so that one record or request can be
// followed across the extract, index and match logs.
const (
	FieldProvider  = "ai_provider"
	FieldModel     = "ai_model"
	FieldRecordID  = "record_id"
	FieldFlow      = "flow"
	FieldRequestID = "request_id"
)

// RecordID tags a log entry with the source record it concerns.
func RecordID(id string) zap.Field {
	return zap.String(FieldRecordID, strings.TrimSpace(id))
}

// Flow names the batch flow (format_candidates, index_candidates, ...).
func Flow(name string) zap.Field {
	return zap.String(FieldFlow, name)
}

func RequestID(id string) zap.Field {
	return zap.String(FieldRequestID, id)
}

// LLMFields describes the model behind a client. Blank values are left out.
func LLMFields(provider, model string) []zap.Field {
	fields := make([]zap.Field, 0, 2)
	if p := strings.TrimSpace(provider); p != "" {
		fields = append(fields, zap.String(FieldProvider, p))
	}
	if m := strings.TrimSpace(model); m != "" {
		fields = append(fields, zap.String(FieldModel, m))
	}
	return fields
}

// WithLLM returns a child logger carrying LLMFields. A nil logger becomes a
// no-op one.
func WithLLM(logger *zap.Logger, provider, model string) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	fields := LLMFields(provider, model)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}
