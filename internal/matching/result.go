package matching

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/spigell/ses-matcher/internal/utils"
)

// MaxCandidates is the number of ranked candidates kept from a model answer.
const MaxCandidates = 5

// NoHitsAction is added when the search returned nothing and the model did
// not suggest any follow-up itself.
const NoHitsAction = "条件に合う要員が見つかりませんでした。必須スキルや単価の条件を見直して再検索するか、新しい要員情報を取り込んでください。"

// Candidate is one ranked candidate in a matching answer.
type Candidate struct {
	YoinID     string         `json:"yoin_id"`
	Date       string         `json:"date"`
	YoinInfo   map[string]any `json:"yoin_info"`
	MatchScore int            `json:"match_score"`
	Comment    string         `json:"comment"`
}

// Result is the ranked answer for one requisition.
type Result struct {
	Candidates      []Candidate      `json:"candidates"`
	ComparisonTable []map[string]any `json:"comparison_table,omitempty"`
	Actions         []string         `json:"actions"`
}

// ParseError reports a ranking answer that does not fit Result.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse matching result: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseResult validates a model answer field by field. Candidates beyond
// MaxCandidates are dropped; the order given by the model is kept.
func ParseResult(raw string) (*Result, error) {
	res, err := parseResult(raw)
	if err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	return res, nil
}

func parseResult(raw string) (*Result, error) {
	cleaned := utils.ExtractJSON(raw)
	if cleaned == "" {
		return nil, errors.New("empty response")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON object")
	}
	if data == nil {
		return nil, errors.New("expected a JSON object")
	}

	rawCandidates, ok := data["candidates"]
	if !ok {
		return nil, errors.New(`missing field "candidates"`)
	}
	list, ok := rawCandidates.([]any)
	if !ok {
		return nil, errors.New(`field "candidates" must be an array`)
	}

	res := &Result{Candidates: make([]Candidate, 0, min(len(list), MaxCandidates))}
	for i, item := range list {
		if i == MaxCandidates {
			break
		}
		c, err := parseCandidate(item)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		res.Candidates = append(res.Candidates, c)
	}

	rawActions, ok := data["actions"]
	if !ok {
		return nil, errors.New(`missing field "actions"`)
	}
	actions, ok := rawActions.([]any)
	if !ok {
		return nil, errors.New(`field "actions" must be an array`)
	}
	res.Actions = make([]string, 0, len(actions))
	for i, a := range actions {
		s, ok := a.(string)
		if !ok {
			return nil, fmt.Errorf("action %d must be a string", i)
		}
		res.Actions = append(res.Actions, s)
	}

	if rawTable, ok := data["comparison_table"]; ok && rawTable != nil {
		rows, ok := rawTable.([]any)
		if !ok {
			return nil, errors.New(`field "comparison_table" must be an array`)
		}
		for i, row := range rows {
			m, ok := row.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("comparison_table row %d must be an object", i)
			}
			res.ComparisonTable = append(res.ComparisonTable, m)
		}
	}

	return res, nil
}

func parseCandidate(item any) (Candidate, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		return Candidate{}, errors.New("must be an object")
	}

	var c Candidate
	var err error

	if c.YoinID, err = stringField(obj, "yoin_id", true); err != nil {
		return Candidate{}, err
	}
	if c.Date, err = stringField(obj, "date", false); err != nil {
		return Candidate{}, err
	}
	if c.Comment, err = stringField(obj, "comment", false); err != nil {
		return Candidate{}, err
	}

	info, ok := obj["yoin_info"]
	if !ok {
		return Candidate{}, errors.New(`missing field "yoin_info"`)
	}
	if c.YoinInfo, ok = info.(map[string]any); !ok {
		return Candidate{}, errors.New(`field "yoin_info" must be an object`)
	}

	score, ok := obj["match_score"]
	if !ok {
		return Candidate{}, errors.New(`missing field "match_score"`)
	}
	num, ok := score.(json.Number)
	if !ok {
		return Candidate{}, fmt.Errorf(`field "match_score" must be a number, got %T`, score)
	}
	f, err := num.Float64()
	if err != nil {
		return Candidate{}, fmt.Errorf(`field "match_score": %w`, err)
	}
	c.MatchScore = int(math.Round(f))

	return c, nil
}

// stringField reads a required string. Numeric ids are accepted when
// allowNumber is set.
func stringField(obj map[string]any, key string, allowNumber bool) (string, error) {
	v, ok := obj[key]
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case json.Number:
		if allowNumber {
			return val.String(), nil
		}
	}
	return "", fmt.Errorf("field %q must be a string, got %T", key, v)
}

// applyNoHits enforces the answer shape for a search without hits.
func applyNoHits(res *Result) {
	res.Candidates = []Candidate{}
	if len(res.Actions) == 0 {
		res.Actions = []string{NoHitsAction}
	}
}
