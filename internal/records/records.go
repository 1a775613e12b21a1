// Package records holds the data model shared by the record source, the
// extractor, the indexer and the matcher.
package records

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Category selects a record set in the record source.
type Category string

const (
	CategoryCandidate            Category = "candidate"
	CategoryRequisition          Category = "requisition"
	CategoryCandidateFormatted   Category = "candidate_formatted"
	CategoryRequisitionFormatted Category = "requisition_formatted"
)

// RawEchoField is the key under which the original mail body is written back
// next to the structured fields.
const RawEchoField = "raw_input"

func (c Category) String() string { return string(c) }

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryCandidate, CategoryRequisition, CategoryCandidateFormatted, CategoryRequisitionFormatted:
		return true
	default:
		return false
	}
}

// RawRecord is an email-derived row as stored by the record source.
type RawRecord struct {
	ID         string   `json:"ID" mapstructure:"ID"`
	ReceivedAt string   `json:"受信日時" mapstructure:"受信日時"`
	Subject    string   `json:"件名" mapstructure:"件名"`
	Body       string   `json:"本文" mapstructure:"本文"`
	Category   Category `json:"分類,omitempty" mapstructure:"分類"`

	// Some sheets use the English column name for the subject.
	AltSubject string `json:"-" mapstructure:"subject"`
}

// Title returns the subject regardless of which column carried it.
func (r RawRecord) Title() string {
	if strings.TrimSpace(r.Subject) != "" {
		return r.Subject
	}
	return r.AltSubject
}

// Candidate is the structured form of a candidate ("要員") mail.
type Candidate struct {
	ID         string `json:"id" mapstructure:"id"`
	ReceivedAt string `json:"date" mapstructure:"date"`
	Name       string `json:"name" mapstructure:"name"`
	Age        string `json:"age" mapstructure:"age"`
	Skill      string `json:"skill" mapstructure:"skill"`
	Station    string `json:"station" mapstructure:"station"`
	WorkStyle  string `json:"work_style" mapstructure:"work_style"`
	Price      string `json:"price" mapstructure:"price"`
	Notes      string `json:"etc" mapstructure:"etc"`
	Subject    string `json:"subject" mapstructure:"subject"`
	RawInput   string `json:"raw_input,omitempty" mapstructure:"raw_input"`
}

// Requisition is the structured form of a job requisition ("案件") mail.
type Requisition struct {
	ID               string `json:"id" mapstructure:"id"`
	ReceivedAt       string `json:"date" mapstructure:"date"`
	Name             string `json:"name" mapstructure:"name"`
	Skill            string `json:"skill" mapstructure:"skill"`
	Station          string `json:"station" mapstructure:"station"`
	WorkStyle        string `json:"work_style" mapstructure:"work_style"`
	Schedule         string `json:"schedule" mapstructure:"schedule"`
	Price            string `json:"price" mapstructure:"price"`
	Notes            string `json:"etc" mapstructure:"etc"`
	Subject          string `json:"subject" mapstructure:"subject"`
	RawInput         string `json:"raw_input,omitempty" mapstructure:"raw_input"`
	PriorityKeywords string `json:"priority_keywords,omitempty" mapstructure:"priority_keywords"`
}

// formattedCandidate mirrors the column layout of the structured candidate sheet.
type formattedCandidate struct {
	ID        string `mapstructure:"ID"`
	Date      string `mapstructure:"受信日時"`
	Name      string `mapstructure:"氏名"`
	Age       string `mapstructure:"年齢"`
	Skill     string `mapstructure:"スキル"`
	Station   string `mapstructure:"最寄駅"`
	WorkStyle string `mapstructure:"勤務形態（希望）"`
	Price     string `mapstructure:"単価（希望）"`
	Notes     string `mapstructure:"備考"`
	Subject   string `mapstructure:"メールタイトル"`
	RawInput  string `mapstructure:"raw_input"`
}

// ToMap returns the write-back payload for the record source.
func (c *Candidate) ToMap() map[string]any {
	return map[string]any{
		"id":         c.ID,
		"date":       c.ReceivedAt,
		"name":       c.Name,
		"age":        c.Age,
		"skill":      c.Skill,
		"station":    c.Station,
		"work_style": c.WorkStyle,
		"price":      c.Price,
		"etc":        c.Notes,
		"subject":    c.Subject,
		RawEchoField: c.RawInput,
	}
}

// ToMap returns the write-back payload for the record source.
func (r *Requisition) ToMap() map[string]any {
	m := map[string]any{
		"id":         r.ID,
		"date":       r.ReceivedAt,
		"name":       r.Name,
		"skill":      r.Skill,
		"station":    r.Station,
		"work_style": r.WorkStyle,
		"schedule":   r.Schedule,
		"price":      r.Price,
		"etc":        r.Notes,
		"subject":    r.Subject,
		RawEchoField: r.RawInput,
	}
	if r.PriorityKeywords != "" {
		m["priority_keywords"] = r.PriorityKeywords
	}
	return m
}

// DecodeRaw converts record-source items into raw records.
func DecodeRaw(items []map[string]any) ([]RawRecord, error) {
	out := make([]RawRecord, 0, len(items))
	for i, item := range items {
		var rec RawRecord
		if err := decode(item, &rec); err != nil {
			return nil, fmt.Errorf("decode raw record %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// DecodeCandidates converts structured candidate items into candidates.
// Both the sheet layout (Japanese column names) and the extractor layout
// (English JSON keys) are accepted.
func DecodeCandidates(items []map[string]any) ([]Candidate, error) {
	out := make([]Candidate, 0, len(items))
	for i, item := range items {
		if _, ok := item["ID"]; !ok {
			var c Candidate
			if err := decode(item, &c); err != nil {
				return nil, fmt.Errorf("decode candidate %d: %w", i, err)
			}
			out = append(out, c)
			continue
		}

		var f formattedCandidate
		if err := decode(item, &f); err != nil {
			return nil, fmt.Errorf("decode candidate %d: %w", i, err)
		}
		out = append(out, Candidate{
			ID:         f.ID,
			ReceivedAt: f.Date,
			Name:       f.Name,
			Age:        f.Age,
			Skill:      f.Skill,
			Station:    f.Station,
			WorkStyle:  f.WorkStyle,
			Price:      f.Price,
			Notes:      f.Notes,
			Subject:    f.Subject,
			RawInput:   f.RawInput,
		})
	}
	return out, nil
}

// decode is lenient about scalar types: spreadsheets hand back ages and ids
// as numbers.
func decode(input map[string]any, target any) error {
	cfg := &mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
