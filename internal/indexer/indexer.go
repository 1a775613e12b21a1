// Package indexer renders structured candidates into search documents and
// writes them to the vector store.
package indexer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/embedding"
	"github.com/spigell/ses-matcher/internal/logger"
	"github.com/spigell/ses-matcher/internal/records"
	"github.com/spigell/ses-matcher/internal/vectorstore"
)

type Indexer struct {
	embedder embedding.Embedder
	store    vectorstore.Store
	logger   *zap.Logger
}

func New(embedder embedding.Embedder, store vectorstore.Store, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{embedder: embedder, store: store, logger: logger}
}

// Render returns the document text stored for c. Labels and their order are
// fixed so that re-indexing the same candidate yields the same text.
func Render(c records.Candidate) string {
	rows := []struct {
		label string
		value string
	}{
		{"要員ID", c.ID},
		{"受信日時", c.ReceivedAt},
		{"氏名", c.Name},
		{"年齢", c.Age},
		{"スキル", c.Skill},
		{"最寄駅", c.Station},
		{"勤務形態（希望）", c.WorkStyle},
		{"単価（希望）", c.Price},
		{"備考", c.Notes},
		{"メールタイトル", c.Subject},
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("【%s】 %s", row.label, strings.TrimSpace(row.value)))
	}
	return strings.Join(lines, "\n")
}

// Index upserts one entry per candidate and returns how many were written.
// Candidates without an id or a usable received-at date are logged and
// skipped. Embedding and store failures abort the run.
func (i *Indexer) Index(ctx context.Context, candidates []records.Candidate) (int, error) {
	indexed := 0
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}

		log := i.logger.With(logger.RecordID(c.ID))

		if strings.TrimSpace(c.ID) == "" {
			log.Warn("candidate has no id, skipping")
			continue
		}

		sortKey, err := records.SortKey(c.ReceivedAt)
		if err != nil {
			log.Warn("cannot derive sort key, skipping", zap.Error(err))
			continue
		}

		text := Render(c)
		vector, err := i.embedder.Embed(ctx, text)
		if err != nil {
			return indexed, fmt.Errorf("embed candidate %s: %w", c.ID, err)
		}

		entry := vectorstore.Entry{
			ID:     c.ID,
			Vector: vector,
			Metadata: vectorstore.Metadata{
				ReceivedAt: sortKey,
				Text:       text,
			},
		}
		if err := i.store.Upsert(ctx, entry); err != nil {
			return indexed, fmt.Errorf("upsert candidate %s: %w", c.ID, err)
		}

		indexed++
		log.Info("candidate indexed", zap.Int("sort_key", sortKey))
	}

	return indexed, nil
}
