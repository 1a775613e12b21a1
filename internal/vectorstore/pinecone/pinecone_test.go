package pinecone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/spigell/ses-matcher/internal/vectorstore"
)

// fakeIndex keeps metadata as decoded JSON, so numbers are float64.
type fakeIndex struct {
	mu      sync.Mutex
	vectors map[string]vector
	paths   []string
}

func (f *fakeIndex) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.paths = append(f.paths, r.URL.Path)
	if r.Header.Get("Api-Key") != "key" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/vectors/upsert":
		var req upsertRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, v := range req.Vectors {
			f.vectors[v.ID] = v
		}
		_, _ = w.Write([]byte(`{"upsertedCount":1}`))
	case "/query":
		resp := queryResponse{}
		for id, v := range f.vectors {
			resp.Matches = append(resp.Matches, struct {
				ID       string         `json:"id"`
				Score    float64        `json:"score"`
				Metadata map[string]any `json:"metadata"`
			}{ID: id, Score: 0.9, Metadata: v.Metadata})
		}
		_ = json.NewEncoder(w).Encode(resp)
	case "/vectors/delete":
		var req deleteRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		cond := req.Filter[sortKeyField].(map[string]any)
		cutoff := cond["$lt"].(float64)
		for id, v := range f.vectors {
			if v.Metadata[sortKeyField].(float64) < cutoff {
				delete(f.vectors, id)
			}
		}
		_, _ = w.Write([]byte(`{}`))
	case "/describe_index_stats":
		_ = json.NewEncoder(w).Encode(map[string]any{"totalVectorCount": len(f.vectors)})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestStore(t *testing.T, apiKey string) (*Store, *fakeIndex) {
	t.Helper()

	index := &fakeIndex{vectors: map[string]vector{}}
	srv := httptest.NewServer(index)
	t.Cleanup(srv.Close)

	store, err := New(Config{Host: srv.URL, APIKey: apiKey}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return store, index
}

func seed(t *testing.T, store *Store, id string, key int) {
	t.Helper()
	err := store.Upsert(context.Background(), vectorstore.Entry{
		ID:       id,
		Vector:   []float32{1, 0},
		Metadata: vectorstore.Metadata{ReceivedAt: key, Text: "要員 " + id},
	})
	if err != nil {
		t.Fatalf("upsert %s: %v", id, err)
	}
}

func TestStoreUpsertAndQuery(t *testing.T) {
	store, _ := newTestStore(t, "key")
	seed(t, store, "Y1", 20240315)

	got, err := store.Query(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 1 || got[0].ID != "Y1" {
		t.Fatalf("unexpected matches: %+v", got)
	}
	if got[0].Metadata.ReceivedAt != 20240315 || got[0].Metadata.Text != "要員 Y1" {
		t.Fatalf("unexpected metadata: %+v", got[0].Metadata)
	}
}

func TestStoreDeleteBefore(t *testing.T) {
	store, index := newTestStore(t, "key")
	seed(t, store, "old", 20240101)
	seed(t, store, "new", 20240301)

	removed, err := store.DeleteBefore(context.Background(), 20240109)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, ok := index.vectors["new"]; !ok {
		t.Fatal("expected newer vector to survive")
	}
}

func TestStoreBadStatus(t *testing.T) {
	store, _ := newTestStore(t, "wrong")

	_, err := store.Query(context.Background(), []float32{1}, 1)
	if err == nil || !strings.Contains(err.Error(), "bad status") {
		t.Fatalf("expected bad status error, got %v", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{APIKey: "key"}, nil); err == nil {
		t.Fatal("expected error without host")
	}
	if _, err := New(Config{Host: "idx.pinecone.io"}, nil); err == nil {
		t.Fatal("expected error without api key")
	}

	store, err := New(Config{Host: "idx.pinecone.io/", APIKey: "key"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.host != "https://idx.pinecone.io" {
		t.Fatalf("unexpected host %q", store.host)
	}
}

func TestStoreKeepsDeployedMetadataKey(t *testing.T) {
	store, index := newTestStore(t, "key")
	seed(t, store, "Y1", 20240315)

	index.mu.Lock()
	defer index.mu.Unlock()
	md := index.vectors["Y1"].Metadata
	if md["recieved_at"] != float64(20240315) {
		t.Fatalf("expected the sort key under recieved_at, got %v", md)
	}
	if _, ok := md["received_at"]; ok {
		t.Fatalf("unexpected received_at key in %v", md)
	}
}
