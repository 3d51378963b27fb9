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

// Package analysis implements a client for an asynchronous threat-intelligence
// service (VirusTotal API v3 compatible). Artifacts are submitted once and the
// returned analysis is polled until it completes or the retry budget runs out.
//
// API docs: https://docs.virustotal.com/reference/overview
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/phishnchips/scamscan/internal/models"
)

const (
	// DefaultPollAttempts is the hard ceiling on status requests per job.
	DefaultPollAttempts = 3
	// DefaultPollInterval is the fixed wait between attempts.
	DefaultPollInterval = 10 * time.Second

	// statusCompleted is the only terminal success status the service reports.
	statusCompleted = "completed"

	maxResponseBytes = 4 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL      string
	APIKey       string
	PollAttempts int
	PollInterval time.Duration
}

// Client talks to the analysis service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	attempts   int
	interval   time.Duration
	now        func() time.Time
}

// NewClient creates an analysis client. The httpClient should carry a
// per-request timeout (see NewHTTPClient).
func NewClient(httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	attempts := opts.PollAttempts
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		attempts:   attempts,
		interval:   interval,
		now:        time.Now,
	}
}

// MaxAttempts returns the poll budget per job.
func (c *Client) MaxAttempts() int { return c.attempts }

// submitResponse is the shape returned by both submission endpoints.
type submitResponse struct {
	Data *struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"data"`
}

// analysisResponse is the shape returned by GET /analyses/{id}.
type analysisResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes *struct {
			Status string `json:"status"`
			Stats  struct {
				Malicious  int `json:"malicious"`
				Suspicious int `json:"suspicious"`
			} `json:"stats"`
			Results map[string]json.RawMessage `json:"results"`
		} `json:"attributes"`
	} `json:"data"`
}

// Submit uploads one artifact and returns the remote job. A response without
// a job id is reported as ErrInvalidInput, never as a network failure.
func (c *Client) Submit(ctx context.Context, target models.ScanTarget) (*models.AnalysisJob, error) {
	var (
		req *http.Request
		err error
	)

	switch target.Kind() {
	case models.TargetURL:
		req, err = c.urlRequest(ctx, target.Value())
	case models.TargetFile:
		req, err = c.fileRequest(ctx, target)
		if err != nil {
			// The upload itself could not be read; nothing reached the service.
			return nil, &SubmissionError{Kind: SubmissionInvalidInput, Subject: target.Subject(), Err: err}
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTarget, target.Kind())
	}
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &SubmissionError{Kind: SubmissionNetwork, Subject: target.Subject(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &SubmissionError{Kind: SubmissionNetwork, Subject: target.Subject(), Err: fmt.Errorf("read response: %w", err)}
	}

	// Server-side trouble is not a verdict on the artifact.
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, &SubmissionError{
			Kind:       SubmissionNetwork,
			Subject:    target.Subject(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("submission failed (HTTP %d): %s", resp.StatusCode, truncate(body)),
		}
	}

	var parsed submitResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &SubmissionError{Kind: SubmissionNetwork, Subject: target.Subject(), Err: fmt.Errorf("decode submission response: %w", err)}
	}

	if parsed.Data == nil || parsed.Data.ID == "" {
		slog.Warn("analysis service rejected artifact",
			"subject", target.Subject(),
			"kind", target.Kind(),
			"status", resp.StatusCode,
		)
		sc := 0
		if resp.StatusCode >= http.StatusBadRequest {
			sc = resp.StatusCode
		}
		return nil, &SubmissionError{Kind: SubmissionInvalidInput, Subject: target.Subject(), StatusCode: sc}
	}

	job := &models.AnalysisJob{
		ID:          parsed.Data.ID,
		Target:      target,
		SubmittedAt: c.now(),
	}

	slog.Info("artifact submitted for analysis",
		"job_id", job.ID,
		"kind", target.Kind(),
		"subject", target.Subject(),
	)

	return job, nil
}

// Poll issues one status request. Anything other than a completed status
// (including a null attributes object) is reported as pending.
func (c *Client) Poll(ctx context.Context, jobID string) (models.AnalysisOutcome, error) {
	u := fmt.Sprintf("%s/analyses/%s", c.baseURL, url.PathEscape(jobID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.AnalysisOutcome{}, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.AnalysisOutcome{}, &PollError{JobID: jobID, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return models.AnalysisOutcome{}, &PollError{
			JobID:      jobID,
			StatusCode: resp.StatusCode,
			Err:        errors.New(truncate(body)),
		}
	}

	var parsed analysisResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&parsed); err != nil {
		return models.AnalysisOutcome{}, &PollError{JobID: jobID, Err: fmt.Errorf("decode analysis: %w", err)}
	}

	attrs := parsed.Data.Attributes
	if attrs == nil || attrs.Status != statusCompleted {
		status := "<none>"
		if attrs != nil {
			status = attrs.Status
		}
		slog.Debug("analysis not complete", "job_id", jobID, "status", status)
		return models.AnalysisOutcome{Status: models.OutcomePending}, nil
	}

	return models.AnalysisOutcome{
		Status:       models.OutcomeCompleted,
		Malicious:    attrs.Stats.Malicious,
		Suspicious:   attrs.Stats.Suspicious,
		TotalEngines: len(attrs.Results),
	}, nil
}

// PollUntilTerminal polls up to MaxAttempts times, waiting the fixed interval
// after each pending result or transient network error. It never waits after
// the final attempt. onAttempt, if set, is called before each attempt.
func (c *Client) PollUntilTerminal(ctx context.Context, jobID string, onAttempt func(attempt, maxAttempts int)) (models.AnalysisOutcome, error) {
	var lastErr error

	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return models.AnalysisOutcome{}, ctx.Err()
			case <-time.After(c.interval):
			}
		}

		if onAttempt != nil {
			onAttempt(attempt, c.attempts)
		}

		outcome, err := c.Poll(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return models.AnalysisOutcome{}, ctx.Err()
			}
			var pe *PollError
			if errors.As(err, &pe) && pe.Transient {
				slog.Warn("transient error polling analysis, will retry",
					"job_id", jobID,
					"attempt", attempt,
					"error", err,
				)
				lastErr = err
				continue
			}
			return models.AnalysisOutcome{Status: models.OutcomeFailed, Reason: err.Error()}, err
		}

		if !outcome.Pending() {
			slog.Info("analysis completed",
				"job_id", jobID,
				"attempt", attempt,
				"malicious", outcome.Malicious,
				"suspicious", outcome.Suspicious,
				"engines", outcome.TotalEngines,
			)
			return outcome, nil
		}

		lastErr = nil
		slog.Debug("analysis pending", "job_id", jobID, "attempt", attempt, "max_attempts", c.attempts)
	}

	slog.Warn("analysis poll budget exhausted", "job_id", jobID, "attempts", c.attempts)
	return models.AnalysisOutcome{Status: models.OutcomePending}, &TimeoutError{JobID: jobID, Attempts: c.attempts, LastErr: lastErr}
}

func (c *Client) urlRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	form := url.Values{}
	form.Set("url", rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/urls", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

func (c *Client) fileRequest(ctx context.Context, target models.ScanTarget) (*http.Request, error) {
	if target.Content() == nil {
		return nil, fmt.Errorf("file %q has no content", target.FileName())
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(target.FileName())))
	header.Set("Content-Type", target.MIMEType())

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if _, err := io.Copy(part, target.Content()); err != nil {
		return nil, fmt.Errorf("read file %q: %w", target.FileName(), err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-apikey", c.apiKey)
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }

func truncate(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
