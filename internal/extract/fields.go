package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spigell/ses-matcher/internal/records"
	"github.com/spigell/ses-matcher/internal/utils"
)

// field binds a JSON key of the model response to a record field.
type field struct {
	key    string
	target *string
}

func candidateFields(c *records.Candidate) []field {
	return []field{
		{"id", &c.ID},
		{"date", &c.ReceivedAt},
		{"name", &c.Name},
		{"age", &c.Age},
		{"skill", &c.Skill},
		{"station", &c.Station},
		{"work_style", &c.WorkStyle},
		{"price", &c.Price},
		{"etc", &c.Notes},
		{"subject", &c.Subject},
	}
}

func requisitionFields(r *records.Requisition) []field {
	return []field{
		{"id", &r.ID},
		{"date", &r.ReceivedAt},
		{"name", &r.Name},
		{"skill", &r.Skill},
		{"station", &r.Station},
		{"work_style", &r.WorkStyle},
		{"schedule", &r.Schedule},
		{"price", &r.Price},
		{"etc", &r.Notes},
		{"subject", &r.Subject},
	}
}

// decodeFields parses raw as a single JSON object and fills every field.
// Each key must be present with a string or number value.
func decodeFields(raw string, fields []field) error {
	cleaned := utils.ExtractJSON(raw)
	if cleaned == "" {
		return errors.New("empty response")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if dec.More() {
		return errors.New("parse response: trailing data after JSON object")
	}
	if data == nil {
		return errors.New("parse response: expected a JSON object")
	}

	for _, f := range fields {
		v, ok := data[f.key]
		if !ok {
			return fmt.Errorf("missing field %q", f.key)
		}

		switch val := v.(type) {
		case string:
			*f.target = val
		case json.Number:
			*f.target = val.String()
		default:
			return fmt.Errorf("field %q: expected string, got %s", f.key, typeName(v))
		}
	}

	return nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
