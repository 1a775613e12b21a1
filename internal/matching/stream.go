package matching

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Mode selects how much of the pipeline a stream runs.
type Mode string

const (
	ModeFull  Mode = ""
	ModeQuick Mode = "quick"
)

// ParseMode accepts "quick" and the empty string.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.TrimSpace(s)) {
	case ModeFull:
		return ModeFull, nil
	case ModeQuick:
		return ModeQuick, nil
	default:
		return "", fmt.Errorf("unknown matching mode %q", s)
	}
}

type StreamOptions struct {
	Mode Mode
}

// Stream runs the match in a goroutine and reports progress on the returned
// channel. The channel is unbuffered and closed after exactly one FinalResult
// or Failure. A consumer that stops reading must cancel ctx; the worker then
// exits without sending the terminal event.
func (m *Matcher) Stream(ctx context.Context, requisitionJSON string, opts StreamOptions) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		emit := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		m.stream(ctx, requisitionJSON, opts, emit)
	}()

	return events
}

func (m *Matcher) stream(ctx context.Context, requisitionJSON string, opts StreamOptions, emit func(Event) bool) {
	log := m.logger.With(zap.String("mode", string(opts.Mode)))

	fail := func(err error, raw string) {
		log.Warn("streamed match failed", zap.Error(err))
		emit(Failure{Message: err.Error(), Raw: raw})
	}

	if !emit(Status{Message: "案件情報を解析しています"}) {
		return
	}
	req, err := ParseRequisition(requisitionJSON)
	if err != nil {
		fail(err, "")
		return
	}

	if !emit(Status{Message: "検索クエリを作成しています"}) {
		return
	}
	if !emit(Status{Message: "要員を検索しています"}) {
		return
	}
	hits, err := m.search(ctx, req)
	if err != nil {
		fail(err, "")
		return
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	if !emit(SearchComplete{Count: len(hits), IDs: ids}) {
		return
	}

	if opts.Mode == ModeQuick {
		for i, h := range hits {
			if !emit(QuickResult{Index: i, Hit: h}) {
				return
			}
		}
		emit(FinalResult{QuickResults: hits, Quick: true})
		return
	}

	prompt, err := m.buildPrompt(req, hits)
	if err != nil {
		fail(err, "")
		return
	}

	if !emit(Status{Message: "AIが候補者を評価しています"}) {
		return
	}

	var acc strings.Builder
	for chunk, err := range m.client.CompleteStream(ctx, prompt) {
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fail(fmt.Errorf("rank candidates: %w", err), acc.String())
			return
		}
		if chunk == "" {
			continue
		}
		acc.WriteString(chunk)
		if !emit(LLMChunk{Chunk: chunk, Accumulated: acc.String()}) {
			return
		}
	}

	if !emit(Status{Message: "評価結果を解析しています"}) {
		return
	}
	res, err := ParseResult(acc.String())
	if err != nil {
		fail(err, acc.String())
		return
	}
	if len(hits) == 0 {
		applyNoHits(res)
	}

	log.Info("streamed match finished", zap.Int("hits", len(hits)), zap.Int("candidates", len(res.Candidates)))
	emit(FinalResult{Result: res})
}
