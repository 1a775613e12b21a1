// Package extract turns raw candidate and requisition mails into structured
// records with a single LLM call per record.
package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/ai"
	"github.com/spigell/ses-matcher/internal/logger"
	"github.com/spigell/ses-matcher/internal/records"
	"github.com/spigell/ses-matcher/internal/utils"
)

//go:embed candidate_prompt.md
var candidatePrompt string

//go:embed requisition_prompt.md
var requisitionPrompt string

// Error reports a model response that could not be turned into a record.
// Callers processing batches skip the record and continue.
type Error struct {
	RecordID string
	Raw      string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract record %s: %v", e.RecordID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Extractor struct {
	client    ai.Client
	logger    *zap.Logger
	maxLogLen int
}

func New(client ai.Client, logger *zap.Logger, maxLogLength int) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = utils.DefaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{client: client, logger: logger, maxLogLen: maxLogLength}
}

// Candidate extracts a candidate profile from rec.
func (e *Extractor) Candidate(ctx context.Context, rec records.RawRecord) (*records.Candidate, error) {
	raw, err := e.complete(ctx, rec, candidatePrompt)
	if err != nil {
		return nil, err
	}

	c := &records.Candidate{}
	if err := decodeFields(raw, candidateFields(c)); err != nil {
		return nil, &Error{RecordID: rec.ID, Raw: raw, Err: err}
	}

	e.restoreIdentity(rec, &c.ID, &c.ReceivedAt)
	if strings.TrimSpace(c.Subject) == "" {
		c.Subject = rec.Title()
	}
	c.Name = NormalizeInitials(c.Name)
	c.Age = NormalizeAge(c.Age)
	c.Skill = NormalizeBullets(c.Skill)

	return c, nil
}

// Requisition extracts a job requisition from rec.
func (e *Extractor) Requisition(ctx context.Context, rec records.RawRecord) (*records.Requisition, error) {
	raw, err := e.complete(ctx, rec, requisitionPrompt)
	if err != nil {
		return nil, err
	}

	r := &records.Requisition{}
	if err := decodeFields(raw, requisitionFields(r)); err != nil {
		return nil, &Error{RecordID: rec.ID, Raw: raw, Err: err}
	}

	e.restoreIdentity(rec, &r.ID, &r.ReceivedAt)
	if strings.TrimSpace(r.Subject) == "" {
		r.Subject = rec.Title()
	}
	r.Skill = NormalizeBullets(r.Skill)

	return r, nil
}

func (e *Extractor) complete(ctx context.Context, rec records.RawRecord, template string) (string, error) {
	prompt := buildPrompt(template, rec)

	e.logger.Debug("extract request",
		logger.RecordID(rec.ID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.client.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("extract record %s: %w", rec.ID, err)
	}

	e.logger.Debug("extract response",
		logger.RecordID(rec.ID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	return raw, nil
}

// restoreIdentity keeps id and date equal to the source record.
func (e *Extractor) restoreIdentity(rec records.RawRecord, id, date *string) {
	if *id != rec.ID {
		e.logger.Warn("model altered record id, restoring",
			logger.RecordID(rec.ID),
			zap.String("model_value", *id),
		)
		*id = rec.ID
	}
	if *date != rec.ReceivedAt {
		e.logger.Warn("model altered received date, restoring",
			logger.RecordID(rec.ID),
			zap.String("received_at", rec.ReceivedAt),
			zap.String("model_value", *date),
		)
		*date = rec.ReceivedAt
	}
}

func buildPrompt(template string, rec records.RawRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID: %s\n", rec.ID)
	fmt.Fprintf(&b, "受信日時: %s\n", rec.ReceivedAt)
	fmt.Fprintf(&b, "件名: %s\n", rec.Title())
	b.WriteString("本文:\n")
	b.WriteString(strings.TrimSpace(rec.Body))

	return strings.ReplaceAll(template, "{{RECORD}}", b.String())
}
