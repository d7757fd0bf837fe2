package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const createGenerationTable = `
CREATE TABLE IF NOT EXISTS generation_metrics (
	generation_id        TEXT PRIMARY KEY,
	started_at           TEXT NOT NULL,
	finished_at          TEXT NOT NULL,
	total_ms             INTEGER NOT NULL,
	outline_ms           INTEGER NOT NULL,
	details_ms           INTEGER NOT NULL,
	steps                TEXT,
	validation_pass_rate REAL,
	correction_count     INTEGER NOT NULL,
	citation_rate        REAL,
	rag_articles         INTEGER NOT NULL,
	model                TEXT,
	strategy             TEXT,
	destination          TEXT NOT NULL,
	days                 INTEGER NOT NULL,
	prompt_version       TEXT,
	success              INTEGER NOT NULL
)`

// SQLiteStore inserts records into a local SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens path and ensures the table exists.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createGenerationTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create metrics table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Insert writes one row. A repeated generation id replaces the earlier row.
func (s *SQLiteStore) Insert(ctx context.Context, m GenerationMetrics) error {
	var steps []byte
	if len(m.Steps) > 0 {
		var err error
		if steps, err = json.Marshal(m.Steps); err != nil {
			return fmt.Errorf("marshal steps: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO generation_metrics (
	generation_id, started_at, finished_at, total_ms, outline_ms, details_ms,
	steps, validation_pass_rate, correction_count, citation_rate, rag_articles,
	model, strategy, destination, days, prompt_version, success
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.GenerationID,
		m.StartedAt.UTC().Format(time.RFC3339Nano),
		m.FinishedAt.UTC().Format(time.RFC3339Nano),
		m.Total.Milliseconds(),
		m.Outline.Milliseconds(),
		m.Details.Milliseconds(),
		nullString(string(steps)),
		nullFloat(m.ValidationPassRate),
		m.CorrectionCount,
		nullFloat(m.CitationRate),
		m.RAGArticles,
		nullString(m.Model),
		nullString(m.Strategy),
		m.Destination,
		m.Days,
		nullString(m.PromptVersion),
		m.Success,
	)
	if err != nil {
		return fmt.Errorf("insert metrics %s: %w", m.GenerationID, err)
	}
	return nil
}

// Count returns the number of stored rows.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generation_metrics`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
