package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/spigell/ses-matcher/internal/records"
	"github.com/spigell/ses-matcher/internal/recordsource"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "records.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	err = store.Import(ctx,
		records.RawRecord{ID: "Y1", ReceivedAt: "2024/03/01 09:00", Subject: "要員1", Body: "Java", Category: records.CategoryCandidate},
		records.RawRecord{ID: "Y2", ReceivedAt: "2024/03/15 09:00", Subject: "要員2", Body: "Go", Category: records.CategoryCandidate},
		records.RawRecord{ID: "A1", ReceivedAt: "2024/03/15 09:00", Subject: "案件", Body: "PHP", Category: records.CategoryRequisition},
	)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	got, err := store.Fetch(ctx, records.CategoryCandidate, recordsource.Filters{StartDate: "2024-03-10"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 1 || got[0].ID != "Y2" {
		t.Fatalf("expected only Y2, got %+v", got)
	}

	all, err := store.Fetch(ctx, records.CategoryCandidate, recordsource.Filters{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(all) != 1 || all[0].ID != "Y2" {
		t.Fatalf("expected pagination to return Y2, got %+v", all)
	}

	record := map[string]any{"id": "Y2", "date": "2024/03/15 09:00", "name": "T.K"}
	if err := store.Write(ctx, records.CategoryCandidate, record); err != nil {
		t.Fatalf("write: %v", err)
	}
	record["name"] = "T.S"
	if err := store.Write(ctx, records.CategoryCandidate, record); err != nil {
		t.Fatalf("write: %v", err)
	}

	structured, err := store.FetchStructured(ctx, records.CategoryCandidateFormatted, recordsource.Filters{})
	if err != nil {
		t.Fatalf("fetch structured: %v", err)
	}
	if len(structured) != 1 || structured[0]["name"] != "T.S" {
		t.Fatalf("expected one overwritten record, got %+v", structured)
	}
}

func TestStoreWriteRequiresID(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "records.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if err := store.Write(context.Background(), records.CategoryRequisition, map[string]any{"name": "x"}); err == nil {
		t.Fatal("expected error for record without id")
	}
}

func TestFetchWithoutLimitReturnsEveryRecord(t *testing.T) {
	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "records.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	items := make([]records.RawRecord, 0, 150)
	for i := range 150 {
		items = append(items, records.RawRecord{
			ID:         fmt.Sprintf("Y%03d", i),
			ReceivedAt: "2024/03/01 09:00",
			Subject:    "要員",
			Body:       "Java",
			Category:   records.CategoryCandidate,
		})
	}
	if err := store.Import(ctx, items...); err != nil {
		t.Fatalf("import: %v", err)
	}

	tests := []struct {
		name    string
		filters recordsource.Filters
		expect  int
		firstID string
	}{
		{name: "no limit", filters: recordsource.Filters{}, expect: 150, firstID: "Y000"},
		{name: "offset only", filters: recordsource.Filters{Offset: 140}, expect: 10, firstID: "Y140"},
		{name: "limit and offset", filters: recordsource.Filters{Limit: 5, Offset: 10}, expect: 5, firstID: "Y010"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Fetch(ctx, records.CategoryCandidate, tt.filters)
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			if len(got) != tt.expect {
				t.Fatalf("expected %d records, got %d", tt.expect, len(got))
			}
			if got[0].ID != tt.firstID {
				t.Fatalf("expected first id %s, got %s", tt.firstID, got[0].ID)
			}
		})
	}
}
