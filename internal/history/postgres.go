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
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phishnchips/scamscan/internal/models"
)

// PostgresStore keeps history in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgres creates a history store backed by the given pool.
// It ensures the scan_history table exists on creation.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure history schema: %w", err)
	}
	slog.Info("history store initialised", "driver", "postgres")
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS scan_history (
			id             TEXT PRIMARY KEY,
			kind           TEXT NOT NULL,
			subject        TEXT NOT NULL,
			verdict        TEXT NOT NULL,
			malicious      INTEGER NOT NULL DEFAULT 0,
			suspicious     INTEGER NOT NULL DEFAULT 0,
			total_engines  INTEGER NOT NULL DEFAULT 0,
			ratio          DOUBLE PRECISION NOT NULL DEFAULT 0,
			message        TEXT NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_history_created ON scan_history(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_history_subject ON scan_history(subject);
	`)
	return err
}

// Record inserts one entry.
func (s *PostgresStore) Record(ctx context.Context, e *models.HistoryEntry) error {
	prepare(e)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scan_history
			(id, kind, subject, verdict, malicious, suspicious, total_engines, ratio, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, string(e.Kind), e.Subject, string(e.Verdict), e.Malicious, e.Suspicious, e.TotalEngines, e.Ratio, e.Message, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, subject, verdict, malicious, suspicious,
		       total_engines, ratio, message, created_at
		FROM scan_history
		ORDER BY created_at DESC
		LIMIT $1
	`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// collectEntries scans multiple rows into a slice of entries.
func collectEntries(rows pgx.Rows) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	for rows.Next() {
		var (
			e             models.HistoryEntry
			kind, verdict string
		)
		if err := rows.Scan(
			&e.ID, &kind, &e.Subject, &verdict, &e.Malicious, &e.Suspicious,
			&e.TotalEngines, &e.Ratio, &e.Message, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Kind = models.TargetKind(kind)
		e.Verdict = models.VerdictKind(verdict)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
