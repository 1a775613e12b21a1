// Package pgvector stores candidate vectors in PostgreSQL using the vector
// extension.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/vectorstore"
)

const (
	defaultTable     = "candidate_vectors"
	defaultDimension = 1536
)

type Config struct {
	URL       string
	Table     string
	Dimension int
}

// Store implements vectorstore.Store on a pgx pool.
type Store struct {
	pool      *pgxpool.Pool
	table     string
	dimension int
	logger    *zap.Logger
}

var _ vectorstore.Store = (*Store)(nil)

// New connects, registers the vector type on every connection and creates
// the table when missing.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("postgres url is required")
	}

	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = defaultTable
	}

	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = defaultDimension
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
			return fmt.Errorf("create vector extension: %w", err)
		}
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	s := &Store{
		pool:      pool,
		table:     pgx.Identifier{table}.Sanitize(),
		dimension: dimension,
		logger:    logger,
	}

	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			received_at INTEGER NOT NULL,
			text TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table, s.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (received_at)`,
			pgx.Identifier{strings.Trim(s.table, `"`) + "_received_at_idx"}.Sanitize(), s.table),
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create pgvector schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, e vectorstore.Entry) error {
	if e.ID == "" {
		return vectorstore.ErrEmptyID
	}
	if len(e.Vector) != s.dimension {
		return fmt.Errorf("vector dimension %d does not match table dimension %d", len(e.Vector), s.dimension)
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, embedding, received_at, text)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET embedding = EXCLUDED.embedding,
			received_at = EXCLUDED.received_at,
			text = EXCLUDED.text,
			updated_at = now()`, s.table)

	if _, err := s.pool.Exec(ctx, query, e.ID, pgv.NewVector(e.Vector), e.Metadata.ReceivedAt, e.Metadata.Text); err != nil {
		return fmt.Errorf("upsert vector %s: %w", e.ID, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]vectorstore.Match, error) {
	if len(vector) == 0 {
		return nil, vectorstore.ErrEmptyVector
	}
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}

	query := fmt.Sprintf(`SELECT id, 1 - (embedding <=> $1) AS score, received_at, text
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, s.table)

	rows, err := s.pool.Query(ctx, query, pgv.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()

	var matches []vectorstore.Match
	for rows.Next() {
		var m vectorstore.Match
		if err := rows.Scan(&m.ID, &m.Score, &m.Metadata.ReceivedAt, &m.Metadata.Text); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vector rows: %w", err)
	}

	return matches, nil
}

func (s *Store) DeleteBefore(ctx context.Context, sortKey int) (int, error) {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE received_at < $1`, s.table), sortKey)
	if err != nil {
		return 0, fmt.Errorf("delete vectors: %w", err)
	}

	s.logger.Debug("deleted vectors", zap.Int("sort_key", sortKey), zap.Int64("count", tag.RowsAffected()))

	return int(tag.RowsAffected()), nil
}
