// Package vectorstore defines the candidate index contract and its backends.
package vectorstore

import (
	"context"
	"errors"
)

const DefaultTopK = 20

// Metadata is stored next to every vector.
type Metadata struct {
	// ReceivedAt is the YYYYMMDD sort key of the source record.
	ReceivedAt int    `json:"received_at"`
	Text       string `json:"text"`
}

// Entry is one indexed candidate. ID is the candidate id.
type Entry struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// Match is a query hit. Higher scores are closer.
type Match struct {
	ID       string
	Score    float64
	Metadata Metadata
}

// Store persists entries and answers nearest-neighbour queries.
type Store interface {
	// Upsert writes e, replacing any entry with the same id.
	Upsert(ctx context.Context, e Entry) error
	// Query returns at most topK entries ordered by descending score.
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	// DeleteBefore removes entries whose sort key is lower than sortKey and
	// reports how many were removed.
	DeleteBefore(ctx context.Context, sortKey int) (int, error)
}

var (
	ErrEmptyID     = errors.New("entry id is required")
	ErrEmptyVector = errors.New("vector must not be empty")
)

func validate(e Entry) error {
	if e.ID == "" {
		return ErrEmptyID
	}
	if len(e.Vector) == 0 {
		return ErrEmptyVector
	}
	return nil
}
