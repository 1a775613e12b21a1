package indexer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/ses-matcher/internal/records"
	"github.com/spigell/ses-matcher/internal/vectorstore"
)

// lengthEmbedder maps text to a two dimensional vector derived from its length.
type lengthEmbedder struct {
	err   error
	calls int
}

func (e *lengthEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (e *lengthEmbedder) Model() string { return "length" }

func TestRender(t *testing.T) {
	t.Parallel()

	text := Render(records.Candidate{
		ID:         "Y-1",
		ReceivedAt: "2024-03-15 10:00",
		Name:       "T.K",
		Skill:      "- Java\n- Spring",
		Subject:    "件名",
	})

	lines := strings.Split(text, "\n")
	if lines[0] != "【要員ID】 Y-1" {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !strings.HasSuffix(text, "【メールタイトル】 件名") {
		t.Fatalf("expected subject last, got %q", text)
	}

	labels := []string{"【要員ID】", "【受信日時】", "【氏名】", "【年齢】", "【スキル】", "【最寄駅】", "【勤務形態（希望）】", "【単価（希望）】", "【備考】", "【メールタイトル】"}
	prev := -1
	for _, label := range labels {
		idx := strings.Index(text, label)
		if idx <= prev {
			t.Fatalf("label %s out of order", label)
		}
		prev = idx
	}
}

func TestIndexOverwritesByID(t *testing.T) {
	t.Parallel()

	store := vectorstore.NewMemory()
	idx := New(&lengthEmbedder{}, store, nil)
	ctx := context.Background()

	first := records.Candidate{ID: "Y-1", ReceivedAt: "2024-03-15 10:00", Skill: "- Java"}
	second := records.Candidate{ID: "Y-1", ReceivedAt: "2024/04/01 09:00", Skill: "- Go"}

	for _, c := range []records.Candidate{first, second} {
		n, err := idx.Index(ctx, []records.Candidate{c})
		if err != nil {
			t.Fatalf("index: %v", err)
		}
		if n != 1 {
			t.Fatalf("expected 1 indexed, got %d", n)
		}
	}

	if store.Len() != 1 {
		t.Fatalf("expected a single entry, got %d", store.Len())
	}

	entry, ok := store.Get("Y-1")
	if !ok {
		t.Fatalf("entry Y-1 missing")
	}
	if entry.Metadata.ReceivedAt != 20240401 {
		t.Fatalf("expected latest sort key, got %d", entry.Metadata.ReceivedAt)
	}
	if !strings.Contains(entry.Metadata.Text, "- Go") || strings.Contains(entry.Metadata.Text, "- Java") {
		t.Fatalf("expected latest text, got %q", entry.Metadata.Text)
	}
}

func TestIndexSkipsInvalidRecords(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.WarnLevel)
	store := vectorstore.NewMemory()
	embedder := &lengthEmbedder{}
	idx := New(embedder, store, zap.New(core))

	n, err := idx.Index(context.Background(), []records.Candidate{
		{ID: "Y-1", ReceivedAt: "2024-03-15"},
		{ID: "Y-2", ReceivedAt: "3月15日"},
		{ID: "", ReceivedAt: "2024-03-15"},
	})
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if n != 1 || store.Len() != 1 {
		t.Fatalf("expected one indexed entry, got n=%d len=%d", n, store.Len())
	}
	if embedder.calls != 1 {
		t.Fatalf("expected skipped records not to be embedded, got %d calls", embedder.calls)
	}
	if observed.Len() != 2 {
		t.Fatalf("expected 2 warnings, got %d", observed.Len())
	}
	if got := observed.All()[0].ContextMap()["record_id"]; got != "Y-2" {
		t.Fatalf("expected warning for Y-2, got %v", got)
	}
}

func TestIndexEmbeddingFailureAborts(t *testing.T) {
	t.Parallel()

	store := vectorstore.NewMemory()
	idx := New(&lengthEmbedder{err: errors.New("rate limited")}, store, nil)

	n, err := idx.Index(context.Background(), []records.Candidate{
		{ID: "Y-1", ReceivedAt: "2024-03-15"},
		{ID: "Y-2", ReceivedAt: "2024-03-16"},
	})
	if err == nil || !strings.Contains(err.Error(), "Y-1") {
		t.Fatalf("expected embedding error for Y-1, got %v", err)
	}
	if n != 0 || store.Len() != 0 {
		t.Fatalf("expected nothing indexed, got n=%d len=%d", n, store.Len())
	}
}
