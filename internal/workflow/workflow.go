// Package workflow wires the record source, the extractor, the indexer and
// the vector store into the batch flows exposed by the CLI and the API.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/extract"
	"github.com/spigell/ses-matcher/internal/logger"
	"github.com/spigell/ses-matcher/internal/records"
	"github.com/spigell/ses-matcher/internal/recordsource"
	"github.com/spigell/ses-matcher/internal/utils"
	"github.com/spigell/ses-matcher/internal/vectorstore"
)

// Extractor is satisfied by *extract.Extractor.
type Extractor interface {
	Candidate(ctx context.Context, rec records.RawRecord) (*records.Candidate, error)
	Requisition(ctx context.Context, rec records.RawRecord) (*records.Requisition, error)
}

// Indexer is satisfied by *indexer.Indexer.
type Indexer interface {
	Index(ctx context.Context, candidates []records.Candidate) (int, error)
}

// Params selects the records a flow works on.
type Params struct {
	StartDate string `json:"start_date,omitempty" mapstructure:"start_date"`
	EndDate   string `json:"end_date,omitempty" mapstructure:"end_date"`
	Limit     int    `json:"limit,omitempty" mapstructure:"limit"`
	Offset    int    `json:"offset,omitempty" mapstructure:"offset"`
	// Index runs IndexCandidates over the same window after FormatCandidates.
	Index bool `json:"index,omitempty" mapstructure:"index"`
}

func (p Params) Filters() recordsource.Filters {
	return recordsource.Filters{
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		Limit:     p.Limit,
		Offset:    p.Offset,
	}
}

// Report summarises one flow run.
type Report struct {
	Fetched   int `json:"fetched"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	// Indexed is set when a formatting run chained the indexer.
	Indexed int `json:"indexed,omitempty"`
}

type Workflow struct {
	source    recordsource.Source
	extractor Extractor
	indexer   Indexer
	store     vectorstore.Store
	logger    *zap.Logger
	maxLogLen int

	// running holds a token while a batch flow runs. The scheduler and the
	// HTTP handlers share one Workflow, so flows never overlap.
	running chan struct{}
}

func New(source recordsource.Source, extractor Extractor, indexer Indexer, store vectorstore.Store, logger *zap.Logger, maxLogLength int) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = utils.DefaultMaxLogLength
	}
	return &Workflow{
		source:    source,
		extractor: extractor,
		indexer:   indexer,
		store:     store,
		logger:    logger,
		maxLogLen: maxLogLength,
		running:   make(chan struct{}, 1),
	}
}

// acquire waits for the running flow to finish or for ctx to end.
func (w *Workflow) acquire(ctx context.Context) (func(), error) {
	select {
	case w.running <- struct{}{}:
		return func() { <-w.running }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for the running flow: %w", ctx.Err())
	}
}

// FormatCandidates structures raw candidate mails and writes them back.
// Records the model cannot structure are skipped; fetch and write failures
// abort the run.
func (w *Workflow) FormatCandidates(ctx context.Context, p Params) (Report, error) {
	release, err := w.acquire(ctx)
	if err != nil {
		return Report{}, err
	}
	defer release()

	log := w.logger.With(logger.Flow("format_candidates"))

	report, err := w.format(ctx, log, records.CategoryCandidate, p, func(rec records.RawRecord) (map[string]any, error) {
		c, err := w.extractor.Candidate(ctx, rec)
		if err != nil {
			return nil, err
		}
		c.RawInput = rec.Body
		return c.ToMap(), nil
	})
	if err != nil || !p.Index {
		return report, err
	}

	indexed, err := w.indexCandidates(ctx, p)
	report.Indexed = indexed.Processed
	return report, err
}

// FormatRequisitions structures raw requisition mails and writes them back.
func (w *Workflow) FormatRequisitions(ctx context.Context, p Params) (Report, error) {
	release, err := w.acquire(ctx)
	if err != nil {
		return Report{}, err
	}
	defer release()

	log := w.logger.With(logger.Flow("format_requisitions"))

	return w.format(ctx, log, records.CategoryRequisition, p, func(rec records.RawRecord) (map[string]any, error) {
		r, err := w.extractor.Requisition(ctx, rec)
		if err != nil {
			return nil, err
		}
		r.RawInput = rec.Body
		return r.ToMap(), nil
	})
}

func (w *Workflow) format(ctx context.Context, log *zap.Logger, category records.Category, p Params, structure func(records.RawRecord) (map[string]any, error)) (Report, error) {
	var report Report

	raws, err := w.source.Fetch(ctx, category, p.Filters())
	if err != nil {
		return report, fmt.Errorf("fetch %s records: %w", category, err)
	}
	report.Fetched = len(raws)
	log.Info("fetched records", zap.Int("count", len(raws)))

	for _, rec := range raws {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		structured, err := structure(rec)
		if err != nil {
			var extractErr *extract.Error
			if errors.As(err, &extractErr) {
				report.Skipped++
				log.Warn("skipping record",
					logger.RecordID(rec.ID),
					zap.Error(err),
					zap.String("raw_response", utils.TruncateForLog(extractErr.Raw, w.maxLogLen)),
				)
				continue
			}
			return report, err
		}

		if err := w.source.Write(ctx, category, structured); err != nil {
			return report, fmt.Errorf("write record %s: %w", rec.ID, err)
		}

		report.Processed++
		log.Info("record structured", logger.RecordID(rec.ID))
	}

	log.Info("flow finished",
		zap.Int("fetched", report.Fetched),
		zap.Int("processed", report.Processed),
		zap.Int("skipped", report.Skipped),
	)

	return report, nil
}

// IndexCandidates loads structured candidates and upserts them into the
// vector store.
func (w *Workflow) IndexCandidates(ctx context.Context, p Params) (Report, error) {
	release, err := w.acquire(ctx)
	if err != nil {
		return Report{}, err
	}
	defer release()

	return w.indexCandidates(ctx, p)
}

func (w *Workflow) indexCandidates(ctx context.Context, p Params) (Report, error) {
	log := w.logger.With(logger.Flow("index_candidates"))

	items, err := w.source.FetchStructured(ctx, records.CategoryCandidateFormatted, p.Filters())
	if err != nil {
		return Report{}, fmt.Errorf("fetch structured candidates: %w", err)
	}

	candidates, err := records.DecodeCandidates(items)
	if err != nil {
		return Report{}, err
	}

	report := Report{Fetched: len(candidates)}
	n, err := w.indexer.Index(ctx, candidates)
	report.Processed = n
	if err != nil {
		return report, err
	}
	report.Skipped = report.Fetched - n

	log.Info("flow finished",
		zap.Int("fetched", report.Fetched),
		zap.Int("processed", report.Processed),
		zap.Int("skipped", report.Skipped),
	)

	return report, nil
}

// Prune removes index entries received before cutoff (YYYYMMDD or a date).
func (w *Workflow) Prune(ctx context.Context, cutoff string) (int, error) {
	release, err := w.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	sortKey, err := records.SortKey(cutoff)
	if err != nil {
		return 0, fmt.Errorf("parse cutoff: %w", err)
	}

	removed, err := w.store.DeleteBefore(ctx, sortKey)
	if err != nil {
		return 0, fmt.Errorf("delete entries before %d: %w", sortKey, err)
	}

	w.logger.Info("index pruned", zap.Int("before", sortKey), zap.Int("removed", removed))
	return removed, nil
}
