// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/phishnchips/scamscan/internal/models"
)

// SQLiteStore keeps history in a local SQLite file, for single-node and CLI use.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; modernc serialises anyway.
	db.SetMaxOpenConns(1)

	s, err := NewSQLite(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite wraps an open database and ensures the schema.
func NewSQLite(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure history schema: %w", err)
	}
	slog.Info("history store initialised", "driver", "sqlite")
	return s, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`CREATE TABLE IF NOT EXISTS scan_history (
			id             TEXT PRIMARY KEY,
			kind           TEXT NOT NULL,
			subject        TEXT NOT NULL,
			verdict        TEXT NOT NULL,
			malicious      INTEGER NOT NULL DEFAULT 0,
			suspicious     INTEGER NOT NULL DEFAULT 0,
			total_engines  INTEGER NOT NULL DEFAULT 0,
			ratio          REAL NOT NULL DEFAULT 0,
			message        TEXT NOT NULL DEFAULT '',
			created_at     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_created ON scan_history(created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record inserts one entry. Timestamps are stored as Unix nanoseconds.
func (s *SQLiteStore) Record(ctx context.Context, e *models.HistoryEntry) error {
	prepare(e)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_history
			(id, kind, subject, verdict, malicious, suspicious, total_engines, ratio, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, string(e.Kind), e.Subject, string(e.Verdict), e.Malicious, e.Suspicious, e.TotalEngines, e.Ratio, e.Message, e.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, subject, verdict, malicious, suspicious,
		       total_engines, ratio, message, created_at
		FROM scan_history
		ORDER BY created_at DESC
		LIMIT ?
	`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var (
			e             models.HistoryEntry
			kind, verdict string
			created       int64
		)
		if err := rows.Scan(
			&e.ID, &kind, &e.Subject, &verdict, &e.Malicious, &e.Suspicious,
			&e.TotalEngines, &e.Ratio, &e.Message, &created,
		); err != nil {
			return nil, err
		}
		e.Kind = models.TargetKind(kind)
		e.Verdict = models.VerdictKind(verdict)
		e.CreatedAt = time.Unix(0, created).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Ping checks the database is still reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
