// Package pinecone is a minimal REST client for the Pinecone data plane.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/vectorstore"
)

const (
	apiVersion     = "2024-07"
	defaultTimeout = 30 * time.Second

	// Indexes populated by the earlier deployment use this spelling.
	sortKeyField = "recieved_at"
	textField    = "text"
)

type Config struct {
	// Host is the index host, e.g. https://candidates-abc123.svc.us-east1-gcp.pinecone.io
	Host      string
	APIKey    string
	Namespace string
	Timeout   time.Duration
}

// Store implements vectorstore.Store on a Pinecone index.
type Store struct {
	host      string
	apiKey    string
	namespace string
	client    *http.Client
	logger    *zap.Logger
}

var _ vectorstore.Store = (*Store)(nil)

func New(cfg Config, logger *zap.Logger) (*Store, error) {
	host := strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	if host == "" {
		return nil, errors.New("pinecone index host is required")
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}

	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("pinecone api key is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		host:      host,
		apiKey:    strings.TrimSpace(cfg.APIKey),
		namespace: cfg.Namespace,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}, nil
}

type vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type upsertRequest struct {
	Vectors   []vector `json:"vectors"`
	Namespace string   `json:"namespace,omitempty"`
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	Namespace       string    `json:"namespace,omitempty"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

type deleteRequest struct {
	Filter    map[string]any `json:"filter"`
	Namespace string         `json:"namespace,omitempty"`
}

type statsResponse struct {
	TotalVectorCount int `json:"totalVectorCount"`
	Namespaces       map[string]struct {
		VectorCount int `json:"vectorCount"`
	} `json:"namespaces"`
}

func (s *Store) Upsert(ctx context.Context, e vectorstore.Entry) error {
	if e.ID == "" {
		return vectorstore.ErrEmptyID
	}
	if len(e.Vector) == 0 {
		return vectorstore.ErrEmptyVector
	}

	body := upsertRequest{
		Vectors: []vector{{
			ID:     e.ID,
			Values: e.Vector,
			Metadata: map[string]any{
				sortKeyField: e.Metadata.ReceivedAt,
				textField:    e.Metadata.Text,
			},
		}},
		Namespace: s.namespace,
	}

	return s.postJSON(ctx, "/vectors/upsert", body, nil)
}

func (s *Store) Query(ctx context.Context, v []float32, topK int) ([]vectorstore.Match, error) {
	if len(v) == 0 {
		return nil, vectorstore.ErrEmptyVector
	}
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}

	var resp queryResponse
	req := queryRequest{Vector: v, TopK: topK, IncludeMetadata: true, Namespace: s.namespace}
	if err := s.postJSON(ctx, "/query", req, &resp); err != nil {
		return nil, err
	}

	matches := make([]vectorstore.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		match := vectorstore.Match{ID: m.ID, Score: m.Score}
		if f, ok := m.Metadata[sortKeyField].(float64); ok {
			match.Metadata.ReceivedAt = int(f)
		}
		if text, ok := m.Metadata[textField].(string); ok {
			match.Metadata.Text = text
		}
		matches = append(matches, match)
	}

	return matches, nil
}

// DeleteBefore deletes by metadata filter. The data plane does not report a
// count, so it is derived from index stats taken around the delete.
func (s *Store) DeleteBefore(ctx context.Context, sortKey int) (int, error) {
	before, err := s.count(ctx)
	if err != nil {
		return 0, err
	}

	req := deleteRequest{
		Filter:    map[string]any{sortKeyField: map[string]any{"$lt": sortKey}},
		Namespace: s.namespace,
	}
	if err := s.postJSON(ctx, "/vectors/delete", req, nil); err != nil {
		return 0, err
	}

	after, err := s.count(ctx)
	if err != nil {
		return 0, err
	}

	s.logger.Debug("pinecone delete by filter",
		zap.Int("sort_key", sortKey),
		zap.Int("vectors_before", before),
		zap.Int("vectors_after", after),
	)

	return max(before-after, 0), nil
}

func (s *Store) count(ctx context.Context) (int, error) {
	var stats statsResponse
	if err := s.postJSON(ctx, "/describe_index_stats", map[string]any{}, &stats); err != nil {
		return 0, err
	}

	if s.namespace == "" {
		return stats.TotalVectorCount, nil
	}
	return stats.Namespaces[s.namespace].VectorCount, nil
}

func (s *Store) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal pinecone request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.host+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Api-Key", s.apiKey)
	req.Header.Set("X-Pinecone-API-Version", apiVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("pinecone POST %s: bad status: %s: %s", path, resp.Status, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode pinecone %s response: %w", path, err)
	}
	return nil
}
