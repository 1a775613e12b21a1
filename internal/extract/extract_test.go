package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/ses-matcher/internal/ai/aitest"
	"github.com/spigell/ses-matcher/internal/records"
)

var rawCandidate = records.RawRecord{
	ID:         "Y-100",
	ReceivedAt: "2024/03/15 10:00",
	Subject:    "【要員】Java 5年 T.K",
	Body:       "氏名: T.K\n年齢: 35歳\nスキル: Java, Spring\n最寄駅: 品川",
	Category:   records.CategoryCandidate,
}

func TestExtractorCandidate(t *testing.T) {
	stub := &aitest.Stub{Responses: []string{"```json\n" + `{
		"id": "Y-100",
		"date": "2024/03/15 10:00",
		"name": "ＴＫ",
		"age": "35歳",
		"skill": "Java、Spring",
		"station": "品川",
		"work_style": "リモート可",
		"price": 60,
		"etc": "",
		"subject": ""
	}` + "\n```"}}

	c, err := New(stub, nil, 0).Candidate(context.Background(), rawCandidate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.ID != rawCandidate.ID || c.ReceivedAt != rawCandidate.ReceivedAt {
		t.Fatalf("identity changed: %s / %s", c.ID, c.ReceivedAt)
	}
	if c.Name != "T.K" {
		t.Fatalf("expected initials, got %q", c.Name)
	}
	if c.Age != "35" {
		t.Fatalf("expected digits-only age, got %q", c.Age)
	}
	if c.Skill != "- Java\n- Spring" {
		t.Fatalf("unexpected skill %q", c.Skill)
	}
	if c.Price != "60" {
		t.Fatalf("expected numeric price as string, got %q", c.Price)
	}
	if c.Subject != rawCandidate.Subject {
		t.Fatalf("expected subject from source, got %q", c.Subject)
	}

	prompt := stub.Prompts()[0]
	for _, want := range []string{"ID: Y-100", "受信日時: 2024/03/15 10:00", "スキル: Java, Spring"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to contain %q", want)
		}
	}
}

func TestExtractorRestoresIdentity(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	stub := &aitest.Stub{Responses: []string{`{"id":"Y100","date":"2024-03-15","name":"案件A","skill":"- Go","station":"","work_style":"","schedule":"4月〜","price":"","etc":"","subject":"件名"}`}}

	rec := rawCandidate
	rec.Category = records.CategoryRequisition

	r, err := New(stub, zap.New(core), 0).Requisition(context.Background(), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.ID != rec.ID || r.ReceivedAt != rec.ReceivedAt {
		t.Fatalf("expected identity restored, got %s / %s", r.ID, r.ReceivedAt)
	}
	if r.Schedule != "4月〜" {
		t.Fatalf("unexpected schedule %q", r.Schedule)
	}
	if got := observed.Len(); got != 2 {
		t.Fatalf("expected 2 warnings, got %d", got)
	}
}

func TestExtractorValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		contains string
	}{
		{name: "not json", response: "申し訳ありませんが", contains: "parse response"},
		{name: "missing key", response: `{"id":"Y-100","date":"2024/03/15 10:00"}`, contains: `missing field "name"`},
		{name: "array value", response: `{"id":"Y-100","date":"d","name":"A","age":"1","skill":["Go"],"station":"","work_style":"","price":"","etc":"","subject":""}`, contains: `field "skill"`},
		{name: "null value", response: `{"id":"Y-100","date":"d","name":null,"age":"1","skill":"","station":"","work_style":"","price":"","etc":"","subject":""}`, contains: "null"},
		{name: "top level array", response: `[{"id":"Y-100"}]`, contains: "parse response"},
		{name: "empty", response: "", contains: "empty response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stub := &aitest.Stub{Responses: []string{tt.response}}
			_, err := New(stub, nil, 0).Candidate(context.Background(), rawCandidate)

			var extractErr *Error
			if !errors.As(err, &extractErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if extractErr.RecordID != rawCandidate.ID || extractErr.Raw != tt.response {
				t.Fatalf("unexpected error details: %+v", extractErr)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Fatalf("expected %q in %q", tt.contains, err.Error())
			}
		})
	}
}

func TestExtractorTransportErrorIsNotExtractionError(t *testing.T) {
	t.Parallel()

	stub := &aitest.Stub{Err: errors.New("connection reset")}
	_, err := New(stub, nil, 0).Candidate(context.Background(), rawCandidate)

	var extractErr *Error
	if err == nil || errors.As(err, &extractErr) {
		t.Fatalf("expected plain transport error, got %v", err)
	}
}
