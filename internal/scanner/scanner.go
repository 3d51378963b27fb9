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

// Package scanner runs single-artifact scans: submit, poll, classify and
// report progress to an Observer. URL, file and e-mail scans share one
// contract; loading always ends false, and a rejected submission is never
// polled.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phishnchips/scamscan/internal/analysis"
	"github.com/phishnchips/scamscan/internal/models"
	"github.com/phishnchips/scamscan/internal/verdict"
)

// Analyzer submits artifacts and polls them to completion. *analysis.Client
// implements it.
type Analyzer interface {
	Submit(ctx context.Context, target models.ScanTarget) (*models.AnalysisJob, error)
	PollUntilTerminal(ctx context.Context, jobID string, onAttempt func(attempt, maxAttempts int)) (models.AnalysisOutcome, error)
}

var _ Analyzer = (*analysis.Client)(nil)

// engine holds what every scanner kind shares.
type engine struct {
	analyzer Analyzer
	policy   verdict.Policy
	now      func() time.Time
}

func newEngine(a Analyzer, policy verdict.Policy) engine {
	return engine{analyzer: a, policy: policy, now: time.Now}
}

// session is one scan invocation.
type session struct {
	id      string
	kind    models.TargetKind
	subject string
	obs     Observer
	now     func() time.Time
}

// begin resets the observer and announces the scan.
func (e engine) begin(obs Observer, kind models.TargetKind, subject string) *session {
	s := &session{
		id:      uuid.NewString(),
		kind:    kind,
		subject: subject,
		obs:     obs,
		now:     e.now,
	}

	obs.message("")
	obs.hasResult(false)
	obs.loading(true)
	s.emit(models.ScanEvent{Type: models.EventStarted})

	slog.Info("scan started", "scan_id", s.id, "kind", kind, "subject", subject)
	return s
}

func (s *session) emit(ev models.ScanEvent) {
	ev.ScanID = s.id
	ev.Subject = s.subject
	ev.At = s.now()
	s.obs.event(ev)
}

func (s *session) fail(msg string, err error) error {
	slog.Warn("scan failed",
		"scan_id", s.id,
		"kind", s.kind,
		"subject", s.subject,
		"error", err,
	)
	s.obs.message(msg)
	s.obs.hasResult(false)
	s.emit(models.ScanEvent{Type: models.EventFailed, Reason: msg})
	return err
}

func (s *session) succeed(v *models.Verdict) *models.Verdict {
	slog.Info("scan completed",
		"scan_id", s.id,
		"kind", s.kind,
		"subject", s.subject,
		"verdict", v.Kind,
		"ratio", v.Ratio,
	)
	s.obs.message(v.Message)
	s.obs.hasResult(true)
	s.emit(models.ScanEvent{Type: models.EventCompleted, Verdict: v})
	return v
}

// run submits target, polls it and classifies the outcome under the session's
// subject. The submitted target may differ from the subject (an e-mail is
// scanned through its domain).
func (e engine) run(ctx context.Context, s *session, target models.ScanTarget) (*models.Verdict, error) {
	job, err := e.analyzer.Submit(ctx, target)
	if err != nil {
		return nil, s.fail(submissionMessage(s.kind, s.subject, err), err)
	}
	s.emit(models.ScanEvent{Type: models.EventSubmitted, JobID: job.ID})

	outcome, err := e.analyzer.PollUntilTerminal(ctx, job.ID, func(attempt, maxAttempts int) {
		s.emit(models.ScanEvent{
			Type:        models.EventPolling,
			JobID:       job.ID,
			Attempt:     attempt,
			MaxAttempts: maxAttempts,
		})
	})
	if err != nil {
		return nil, s.fail(verdict.FailedMessage(s.kind), err)
	}

	return s.succeed(e.policy.Evaluate(s.kind, s.subject, outcome)), nil
}

// submissionMessage picks between the "could not reach" and "invalid" texts.
func submissionMessage(kind models.TargetKind, subject string, err error) string {
	if errors.Is(err, analysis.ErrNetwork) {
		return verdict.UnreachableMessage(subject)
	}
	return verdict.InvalidMessage(kind, subject)
}

// URLScanner scans one URL or domain.
type URLScanner struct {
	engine
}

// NewURLScanner creates a URL scanner.
func NewURLScanner(a Analyzer, policy verdict.Policy) *URLScanner {
	return &URLScanner{engine: newEngine(a, policy)}
}

// Scan submits rawURL and classifies it.
func (u *URLScanner) Scan(ctx context.Context, rawURL string, obs Observer) (*models.Verdict, error) {
	rawURL = strings.TrimSpace(rawURL)

	s := u.begin(obs, models.TargetURL, rawURL)
	defer obs.loading(false)

	if rawURL == "" {
		return nil, s.fail(verdict.InvalidMessage(models.TargetURL, rawURL), fmt.Errorf("%w: empty url", analysis.ErrInvalidInput))
	}

	return u.run(ctx, s, models.URLTarget(rawURL))
}

// FileInput is an uploaded file as handed over by the picker.
type FileInput struct {
	Name     string
	MIMEType string
	Content  io.Reader
}

// FileScanner scans one file.
type FileScanner struct {
	engine
}

// NewFileScanner creates a file scanner.
func NewFileScanner(a Analyzer, policy verdict.Policy) *FileScanner {
	return &FileScanner{engine: newEngine(a, policy)}
}

// Scan uploads the file and classifies it.
func (f *FileScanner) Scan(ctx context.Context, in FileInput, obs Observer) (*models.Verdict, error) {
	name := strings.TrimSpace(in.Name)

	s := f.begin(obs, models.TargetFile, name)
	defer obs.loading(false)

	if name == "" || in.Content == nil {
		return nil, s.fail(verdict.InvalidMessage(models.TargetFile, name), fmt.Errorf("%w: file has no name or content", analysis.ErrInvalidInput))
	}

	return f.run(ctx, s, models.FileTarget(name, in.MIMEType, in.Content))
}
