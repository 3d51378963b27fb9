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

// Package queue publishes user scam reports to a Redis list for the
// community feed workers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/phishnchips/scamscan/internal/models"
)

// MessageTypeScamReport tags report envelopes on the queue.
const MessageTypeScamReport = "scam_report"

// redisList is the part of the Redis client the publisher uses.
// *redis.Client satisfies it.
type redisList interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Publisher sends reports to a Redis list.
type Publisher struct {
	rdb       redisList
	queueName string
	now       func() time.Time
}

// NewPublisher creates a new Redis publisher targeting the specified queue.
func NewPublisher(rdb redisList, queueName string) *Publisher {
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
		now:       time.Now,
	}
}

// envelope is the queue message. Consumers switch on Type.
type envelope struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	PublishedAt time.Time       `json:"published_at"`
}

// buildEnvelope assigns the report an ID if it has none and wraps it.
func (p *Publisher) buildEnvelope(report *models.Report) ([]byte, error) {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = p.now().UTC()
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}

	msg, err := json.Marshal(envelope{
		ID:          report.ID,
		Type:        MessageTypeScamReport,
		Payload:     payload,
		PublishedAt: p.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return msg, nil
}

// PublishReport serialises a report and pushes it onto the queue.
func (p *Publisher) PublishReport(ctx context.Context, report *models.Report) error {
	msg, err := p.buildEnvelope(report)
	if err != nil {
		return err
	}

	if err := p.rdb.LPush(ctx, p.queueName, string(msg)).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}

	slog.Info("published scam report to queue",
		"report_id", report.ID,
		"kind", report.Kind,
		"subject", report.Subject,
		"queue", p.queueName,
	)

	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
