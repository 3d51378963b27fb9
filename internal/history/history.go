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

// Package history keeps an audit trail of completed scans. The scan core never
// reads it; the API layer writes one entry per verdict and serves recent ones.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/phishnchips/scamscan/internal/models"
)

const (
	// DefaultRecentLimit is used when the caller asks for no specific count.
	DefaultRecentLimit = 20
	// MaxRecentLimit caps a single Recent call.
	MaxRecentLimit = 200
)

// Store persists history entries.
type Store interface {
	Record(ctx context.Context, entry *models.HistoryEntry) error
	Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error)
}

// FromVerdict builds an entry for a completed verdict.
func FromVerdict(v *models.Verdict) *models.HistoryEntry {
	return &models.HistoryEntry{
		ID:           uuid.New().String(),
		Kind:         v.Target,
		Subject:      v.Subject,
		Verdict:      v.Kind,
		Malicious:    v.Malicious,
		Suspicious:   v.Suspicious,
		TotalEngines: v.TotalEngines,
		Ratio:        v.Ratio,
		Message:      v.Message,
		CreatedAt:    time.Now().UTC(),
	}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	}
	return limit
}

func prepare(entry *models.HistoryEntry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
}
