// Package matching ranks indexed candidates against a requisition: vector
// retrieval first, then an LLM pass over the retrieved documents.
package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/ai"
	"github.com/spigell/ses-matcher/internal/embedding"
	"github.com/spigell/ses-matcher/internal/utils"
	"github.com/spigell/ses-matcher/internal/vectorstore"
)

//go:embed prompt.md
var rankingPrompt string

const (
	noResultsText = "検索結果がありませんでした。"
	hitSeparator  = "-------------------------"
	todayLayout   = "2006-01-02"
)

// Hit is one retrieved candidate document.
type Hit struct {
	ID         string  `json:"id"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
	ReceivedAt int     `json:"received_at"`
}

type Config struct {
	// TopK is the number of documents retrieved per requisition.
	TopK         int
	MaxLogLength int
	// Now is used for the recency hint in the prompt. Defaults to time.Now.
	Now func() time.Time
}

type Matcher struct {
	client   ai.Client
	embedder embedding.Embedder
	store    vectorstore.Store
	logger   *zap.Logger

	topK      int
	maxLogLen int
	now       func() time.Time
}

func New(client ai.Client, embedder embedding.Embedder, store vectorstore.Store, logger *zap.Logger, cfg Config) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = vectorstore.DefaultTopK
	}
	if cfg.MaxLogLength <= 0 {
		cfg.MaxLogLength = utils.DefaultMaxLogLength
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Matcher{
		client:    client,
		embedder:  embedder,
		store:     store,
		logger:    logger,
		topK:      cfg.TopK,
		maxLogLen: cfg.MaxLogLength,
		now:       cfg.Now,
	}
}

// Match runs retrieval and ranking for one requisition given as a JSON object.
func (m *Matcher) Match(ctx context.Context, requisitionJSON string) (*Result, error) {
	req, err := ParseRequisition(requisitionJSON)
	if err != nil {
		return nil, err
	}

	hits, err := m.search(ctx, req)
	if err != nil {
		return nil, err
	}

	prompt, err := m.buildPrompt(req, hits)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("ranking request",
		zap.Int("hits", len(hits)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
	)

	raw, err := m.client.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("rank candidates: %w", err)
	}

	m.logger.Debug("ranking response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, m.maxLogLen)),
	)

	res, err := ParseResult(raw)
	if err != nil {
		m.logger.Warn("ranking response is not a valid result",
			zap.Error(err),
			zap.String("response_preview", utils.TruncateForLog(raw, m.maxLogLen)),
		)
		return nil, err
	}

	if len(hits) == 0 {
		applyNoHits(res)
	}

	m.logger.Info("matching finished",
		zap.Int("hits", len(hits)),
		zap.Int("candidates", len(res.Candidates)),
	)

	return res, nil
}

// Quick returns the retrieved documents without the ranking pass.
func (m *Matcher) Quick(ctx context.Context, requisitionJSON string) ([]Hit, error) {
	req, err := ParseRequisition(requisitionJSON)
	if err != nil {
		return nil, err
	}
	return m.search(ctx, req)
}

func (m *Matcher) search(ctx context.Context, req map[string]any) ([]Hit, error) {
	text := BuildSearchText(req)

	vector, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed search text: %w", err)
	}

	matches, err := m.store.Query(ctx, vector, m.topK)
	if err != nil {
		return nil, fmt.Errorf("query vector store: %w", err)
	}

	hits := make([]Hit, 0, len(matches))
	for _, match := range matches {
		hits = append(hits, Hit{
			ID:         match.ID,
			Score:      match.Score,
			Text:       match.Metadata.Text,
			ReceivedAt: match.Metadata.ReceivedAt,
		})
	}

	m.logger.Debug("vector search finished", zap.Int("hits", len(hits)), zap.Int("top_k", m.topK))
	return hits, nil
}

func (m *Matcher) buildPrompt(req map[string]any, hits []Hit) (string, error) {
	reqText, err := prettyJSON(req)
	if err != nil {
		return "", err
	}

	return strings.NewReplacer(
		"{{REQUISITION_JSON}}", reqText,
		"{{SEARCH_RESULTS}}", RenderHits(hits),
		"{{TODAY}}", m.now().Format(todayLayout),
	).Replace(rankingPrompt), nil
}

// ParseRequisition decodes a requisition JSON object.
func ParseRequisition(s string) (map[string]any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("requisition is empty")
	}

	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var req map[string]any
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("parse requisition: %w", err)
	}
	if req == nil {
		return nil, errors.New("parse requisition: expected a JSON object")
	}
	return req, nil
}

// searchField lists the requisition keys read for a search line. Sheet
// columns come first and structured keys are fallbacks.
type searchField struct {
	label string
	keys  []string
}

var searchFields = []searchField{
	{"案件名", []string{"案件名", "name"}},
	{"必須スキル", []string{"必須スキル", "skill"}},
	{"作業場所", []string{"作業場所", "station"}},
	{"単価", []string{"単価", "price"}},
	{"備考", []string{"備考", "etc"}},
}

var priorityLabels = []string{"最重要スキル", "希望スキル", "優先技術"}

// BuildSearchText renders the retrieval query for a requisition. Priority
// keywords are repeated under several labels to pull the embedding towards
// them.
func BuildSearchText(req map[string]any) string {
	var lines []string

	if kw := lookup(req, "重点キーワード", "priority_keywords"); kw != "" {
		for _, label := range priorityLabels {
			lines = append(lines, fmt.Sprintf("【%s】 %s", label, kw))
		}
	}

	for _, f := range searchFields {
		lines = append(lines, fmt.Sprintf("%s: %s", f.label, lookup(req, f.keys...)))
	}

	return strings.Join(lines, "\n")
}

func lookup(req map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := req[key]
		if !ok || v == nil {
			continue
		}
		var s string
		switch val := v.(type) {
		case string:
			s = val
		default:
			s = fmt.Sprint(val)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// RenderHits formats retrieved documents for the ranking prompt.
func RenderHits(hits []Hit) string {
	if len(hits) == 0 {
		return noResultsText
	}

	var b strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&b, "■ 要員ID: %s\n", h.ID)
		fmt.Fprintf(&b, "スコア: %s\n", strconv.FormatFloat(h.Score, 'f', 4, 64))
		b.WriteString(strings.TrimSpace(h.Text))
		b.WriteString("\n")
		b.WriteString(hitSeparator)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func prettyJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("render requisition: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
