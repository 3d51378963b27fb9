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

// Package textscan scans every URL and e-mail address found in a block of
// text and folds the per-entity verdicts into at most three messages: scam,
// trusted, and could-not-be-checked.
package textscan

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/phishnchips/scamscan/internal/extract"
	"github.com/phishnchips/scamscan/internal/models"
	"github.com/phishnchips/scamscan/internal/scanner"
	"github.com/phishnchips/scamscan/internal/verdict"
)

// DefaultConcurrency bounds in-flight sub-scans. 1 scans strictly in order.
const DefaultConcurrency = 4

// scamURLLabel prefixes flagged links in the scam aggregate.
const scamURLLabel = "Suspicious URL: "

// EntityScanner scans one extracted entity. *scanner.URLScanner and
// *scanner.EmailScanner implement it.
type EntityScanner interface {
	Scan(ctx context.Context, subject string, obs scanner.Observer) (*models.Verdict, error)
}

var (
	_ EntityScanner = (*scanner.URLScanner)(nil)
	_ EntityScanner = (*scanner.EmailScanner)(nil)
)

// TextObserver receives the aggregated results. Every field is optional.
// OnEvent also receives the sub-scan events; calls are serialised.
type TextObserver struct {
	OnTrusted   func(msg string)
	OnScam      func(msg string)
	OnUnchecked func(msg string)
	OnHasResult func(has bool)
	OnLoading   func(loading bool)
	OnEvent     func(ev models.ScanEvent)
}

// Options configures an Orchestrator.
type Options struct {
	Concurrency int
}

// EntityResult is the outcome of one sub-scan.
type EntityResult struct {
	Entity  models.Entity   `json:"entity"`
	Verdict *models.Verdict `json:"verdict,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Report is the typed result of a text scan.
type Report struct {
	ScanID           string         `json:"scan_id"`
	Results          []EntityResult `json:"results"`
	Scam             []string       `json:"scam"`
	Trusted          []string       `json:"trusted"`
	Unchecked        []string       `json:"unchecked"`
	ScamMessage      string         `json:"scam_message,omitempty"`
	TrustedMessage   string         `json:"trusted_message,omitempty"`
	UncheckedMessage string         `json:"unchecked_message,omitempty"`
	HasResult        bool           `json:"has_result"`
}

// Suspicious reports whether any entity was flagged.
func (r *Report) Suspicious() bool { return r != nil && len(r.Scam) > 0 }

// Orchestrator runs text scans. It holds no per-scan state.
type Orchestrator struct {
	urls        EntityScanner
	emails      EntityScanner
	concurrency int
	now         func() time.Time
}

// New creates an orchestrator over the given entity scanners.
func New(urls, emails EntityScanner, opts Options) *Orchestrator {
	conc := opts.Concurrency
	if conc <= 0 {
		conc = DefaultConcurrency
	}
	return &Orchestrator{
		urls:        urls,
		emails:      emails,
		concurrency: conc,
		now:         time.Now,
	}
}

// Scan extracts entities from text, scans each, and aggregates the verdicts.
// A failed sub-scan never aborts the batch. The returned error is non-nil
// only when ctx ends before all sub-scans finish; the partial report is
// still returned.
func (o *Orchestrator) Scan(ctx context.Context, text string, obs TextObserver) (*Report, error) {
	report := &Report{ScanID: uuid.NewString()}

	var evMu sync.Mutex
	emit := func(ev models.ScanEvent) {
		if obs.OnEvent == nil {
			return
		}
		evMu.Lock()
		defer evMu.Unlock()
		obs.OnEvent(ev)
	}
	self := func(t models.EventType, reason string) {
		emit(models.ScanEvent{ScanID: report.ScanID, Type: t, Subject: "text", Reason: reason, At: o.now()})
	}

	// Start
	call(obs.OnTrusted, "")
	call(obs.OnScam, "")
	call(obs.OnUnchecked, "")
	callBool(obs.OnHasResult, false)
	callBool(obs.OnLoading, true)
	defer callBool(obs.OnLoading, false)
	self(models.EventStarted, "")

	// Extract
	entities := extract.FromInput(text)
	slog.Info("text scan started",
		"scan_id", report.ScanID,
		"urls", len(entities.URLs),
		"emails", len(entities.Emails),
	)

	if entities.Empty() {
		report.Trusted = []string{}
		report.TrustedMessage = verdict.NoSuspiciousContent
		report.HasResult = true
		call(obs.OnTrusted, report.TrustedMessage)
		callBool(obs.OnHasResult, true)
		self(models.EventCompleted, "")
		return report, nil
	}

	// ScanAll
	items := make([]models.Entity, 0, len(entities.URLs)+len(entities.Emails))
	items = append(items, entities.URLs...)
	items = append(items, entities.Emails...)
	report.Results = make([]EntityResult, len(items))

	sub := scanner.Observer{OnEvent: emit}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, ent := range items {
		report.Results[i].Entity = ent
		if gctx.Err() != nil {
			report.Results[i].Error = gctx.Err().Error()
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				report.Results[i].Error = err.Error()
				return nil
			}
			scan := o.urls
			if ent.Kind == models.EntityEmail {
				scan = o.emails
			}
			v, err := scan.Scan(gctx, ent.Value, sub)
			if err != nil {
				report.Results[i].Error = err.Error()
				return nil
			}
			report.Results[i].Verdict = v
			return nil
		})
	}
	g.Wait()

	// Aggregate
	o.aggregate(report, obs)

	if err := ctx.Err(); err != nil {
		slog.Warn("text scan cancelled", "scan_id", report.ScanID, "error", err)
		self(models.EventFailed, err.Error())
		return report, err
	}

	slog.Info("text scan completed",
		"scan_id", report.ScanID,
		"scam", len(report.Scam),
		"trusted", len(report.Trusted),
		"unchecked", len(report.Unchecked),
	)
	self(models.EventCompleted, "")
	return report, nil
}

// aggregate walks results in extraction order (URLs, then e-mails) and emits
// one message per non-empty group.
func (o *Orchestrator) aggregate(report *Report, obs TextObserver) {
	report.Scam = []string{}
	report.Trusted = []string{}
	report.Unchecked = []string{}

	for _, res := range report.Results {
		switch {
		case res.Verdict == nil:
			report.Unchecked = append(report.Unchecked, res.Entity.Value)
		case res.Verdict.IsSuspicious():
			label := res.Entity.Value
			if res.Entity.Kind == models.EntityURL {
				label = scamURLLabel + label
			}
			report.Scam = append(report.Scam, label)
		default:
			report.Trusted = append(report.Trusted, res.Entity.Value)
		}
	}

	if msg := verdict.Aggregate(verdict.TrustedHeader, report.Trusted); msg != "" {
		report.TrustedMessage = msg
		report.HasResult = true
		call(obs.OnTrusted, msg)
		callBool(obs.OnHasResult, true)
	}
	if msg := verdict.Aggregate(verdict.ScamHeader, report.Scam); msg != "" {
		report.ScamMessage = msg
		report.HasResult = true
		call(obs.OnScam, msg)
		callBool(obs.OnHasResult, true)
	}
	if msg := verdict.Aggregate(verdict.UncheckedHeader, report.Unchecked); msg != "" {
		report.UncheckedMessage = msg
		report.HasResult = true
		call(obs.OnUnchecked, msg)
		callBool(obs.OnHasResult, true)
	}
}

func call(fn func(string), s string) {
	if fn != nil {
		fn(s)
	}
}

func callBool(fn func(bool), b bool) {
	if fn != nil {
		fn(b)
	}
}
