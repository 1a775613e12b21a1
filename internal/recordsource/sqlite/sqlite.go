// Package sqlite is a local record source backed by a SQLite file. It serves
// the same categories as the spreadsheet backend and is meant for offline
// runs and fixtures.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/records"
	"github.com/spigell/ses-matcher/internal/recordsource"
)

type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

type rawRow struct {
	ID         string `db:"id"`
	Category   string `db:"category"`
	ReceivedAt string `db:"received_at"`
	SortKey    int    `db:"sort_key"`
	Subject    string `db:"subject"`
	Body       string `db:"body"`
}

type structuredRow struct {
	ID       string `db:"id"`
	Category string `db:"category"`
	SortKey  int    `db:"sort_key"`
	Data     string `db:"data"`
}

var _ recordsource.Source = (*Store)(nil)

// Open connects to path and creates the schema when missing.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite %q: %w", path, err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS raw_records (
			id TEXT NOT NULL,
			category TEXT NOT NULL,
			received_at TEXT NOT NULL,
			sort_key INTEGER NOT NULL DEFAULT 0,
			subject TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (category, id)
		)`,
		`CREATE TABLE IF NOT EXISTS structured_records (
			id TEXT NOT NULL,
			category TEXT NOT NULL,
			sort_key INTEGER NOT NULL DEFAULT 0,
			data TEXT NOT NULL,
			PRIMARY KEY (category, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_records_sort ON raw_records(category, sort_key)`,
		`CREATE INDEX IF NOT EXISTS idx_structured_records_sort ON structured_records(category, sort_key)`,
	}

	for _, stmt := range tables {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create sqlite schema: %w", err)
		}
	}

	return nil
}

// Import stores raw records under their category, replacing rows with the same id.
func (s *Store) Import(ctx context.Context, items ...records.RawRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, item := range items {
		if !item.Category.Valid() {
			return fmt.Errorf("record %s: unknown category %q", item.ID, item.Category)
		}
		key, _ := records.SortKey(item.ReceivedAt)
		_, err := tx.NamedExecContext(ctx,
			`INSERT OR REPLACE INTO raw_records (id, category, received_at, sort_key, subject, body)
			 VALUES (:id, :category, :received_at, :sort_key, :subject, :body)`,
			rawRow{
				ID:         item.ID,
				Category:   item.Category.String(),
				ReceivedAt: item.ReceivedAt,
				SortKey:    key,
				Subject:    item.Title(),
				Body:       item.Body,
			})
		if err != nil {
			return fmt.Errorf("insert raw record %s: %w", item.ID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) Fetch(ctx context.Context, category records.Category, filters recordsource.Filters) ([]records.RawRecord, error) {
	where, args, err := buildWhere(category, filters)
	if err != nil {
		return nil, err
	}

	var rows []rawRow
	query := `SELECT id, category, received_at, sort_key, subject, body FROM raw_records` + where
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select raw records: %w", err)
	}

	out := make([]records.RawRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, records.RawRecord{
			ID:         row.ID,
			ReceivedAt: row.ReceivedAt,
			Subject:    row.Subject,
			Body:       row.Body,
			Category:   records.Category(row.Category),
		})
	}

	s.logger.Debug("got records from sqlite", zap.String("category", category.String()), zap.Int("count", len(out)))

	return out, nil
}

func (s *Store) FetchStructured(ctx context.Context, category records.Category, filters recordsource.Filters) ([]map[string]any, error) {
	where, args, err := buildWhere(category, filters)
	if err != nil {
		return nil, err
	}

	var rows []structuredRow
	query := `SELECT id, category, sort_key, data FROM structured_records` + where
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select structured records: %w", err)
	}

	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		var item map[string]any
		if err := json.Unmarshal([]byte(row.Data), &item); err != nil {
			return nil, fmt.Errorf("decode structured record %s: %w", row.ID, err)
		}
		out = append(out, item)
	}

	return out, nil
}

// Write stores a structured record. Writes for the raw categories land in the
// matching formatted category, the way the spreadsheet backend files them.
func (s *Store) Write(ctx context.Context, category records.Category, record map[string]any) error {
	target := formattedCategory(category)
	if !target.Valid() {
		return fmt.Errorf("unknown record category %q", category)
	}

	id, _ := record["id"].(string)
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("record id is required")
	}

	date, _ := record["date"].(string)
	key, _ := records.SortKey(date)

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", id, err)
	}

	_, err = s.db.NamedExecContext(ctx,
		`INSERT OR REPLACE INTO structured_records (id, category, sort_key, data)
		 VALUES (:id, :category, :sort_key, :data)`,
		structuredRow{ID: id, Category: target.String(), SortKey: key, Data: string(data)},
	)
	if err != nil {
		return fmt.Errorf("write record %s: %w", id, err)
	}

	return nil
}

func formattedCategory(c records.Category) records.Category {
	switch c {
	case records.CategoryCandidate:
		return records.CategoryCandidateFormatted
	case records.CategoryRequisition:
		return records.CategoryRequisitionFormatted
	default:
		return c
	}
}

func buildWhere(category records.Category, filters recordsource.Filters) (string, []any, error) {
	if !category.Valid() {
		return "", nil, fmt.Errorf("unknown record category %q", category)
	}

	clauses := []string{"category = ?"}
	args := []any{category.String()}

	start, err := records.ParseDateBound(filters.StartDate)
	if err != nil {
		return "", nil, fmt.Errorf("start date: %w", err)
	}
	if start > 0 {
		clauses = append(clauses, "sort_key >= ?")
		args = append(args, start)
	}

	end, err := records.ParseDateBound(filters.EndDate)
	if err != nil {
		return "", nil, fmt.Errorf("end date: %w", err)
	}
	if end > 0 {
		clauses = append(clauses, "sort_key <= ?")
		args = append(args, end)
	}

	if len(filters.IDs) > 0 {
		placeholders := make([]string, 0, len(filters.IDs))
		for _, id := range filters.IDs {
			placeholders = append(placeholders, "?")
			args = append(args, id)
		}
		clauses = append(clauses, "id IN ("+strings.Join(placeholders, ",")+")")
	}

	where := " WHERE " + strings.Join(clauses, " AND ") + " ORDER BY sort_key, id"
	switch {
	case filters.Limit > 0:
		where += " LIMIT ? OFFSET ?"
		args = append(args, filters.Limit, max(filters.Offset, 0))
	case filters.Offset > 0:
		// sqlite needs a LIMIT before OFFSET; -1 means no limit.
		where += " LIMIT -1 OFFSET ?"
		args = append(args, filters.Offset)
	}

	return where, args, nil
}
