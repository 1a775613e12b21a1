package pgvector

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/spigell/ses-matcher/internal/vectorstore"
)

// Runs against a real database when PGVECTOR_TEST_URL is set.
func TestStoreAgainstDatabase(t *testing.T) {
	url := os.Getenv("PGVECTOR_TEST_URL")
	if url == "" {
		t.Skip("PGVECTOR_TEST_URL is not set")
	}

	ctx := context.Background()
	table := fmt.Sprintf("test_vectors_%d", time.Now().UnixNano())

	store, err := New(ctx, Config{URL: url, Table: table, Dimension: 3}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() {
		_, _ = store.pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+store.table)
		store.Close()
	})

	entries := []vectorstore.Entry{
		{ID: "Y1", Vector: []float32{1, 0, 0}, Metadata: vectorstore.Metadata{ReceivedAt: 20240101, Text: "old"}},
		{ID: "Y1", Vector: []float32{1, 0, 0}, Metadata: vectorstore.Metadata{ReceivedAt: 20240315, Text: "new"}},
		{ID: "Y2", Vector: []float32{0, 1, 0}, Metadata: vectorstore.Metadata{ReceivedAt: 20240102, Text: "other"}},
	}
	for _, e := range entries {
		if err := store.Upsert(ctx, e); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	got, err := store.Query(ctx, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 || got[0].ID != "Y1" || got[0].Metadata.Text != "new" {
		t.Fatalf("unexpected matches: %+v", got)
	}

	removed, err := store.DeleteBefore(ctx, 20240201)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
}

func TestNewRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Config{}, nil); err == nil {
		t.Fatal("expected error without url")
	}
}
