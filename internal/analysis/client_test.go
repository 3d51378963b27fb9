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

package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phishnchips/scamscan/internal/models"
)

// --- Test helpers ---

// completedBody builds a completed analysis payload with the given counts.
// engines is the number of distinct per-engine result entries.
func completedBody(malicious, suspicious, engines int) map[string]interface{} {
	results := make(map[string]interface{}, engines)
	for i := 0; i < engines; i++ {
		results["engine-"+string(rune('A'+i%26))+strings.Repeat("x", i/26)] = map[string]string{"category": "harmless"}
	}
	return map[string]interface{}{
		"data": map[string]interface{}{
			"id": "job-1",
			"attributes": map[string]interface{}{
				"status":  "completed",
				"stats":   map[string]int{"malicious": malicious, "suspicious": suspicious, "harmless": 1},
				"results": results,
			},
		},
	}
}

func pendingBody(status string) map[string]interface{} {
	return map[string]interface{}{
		"data": map[string]interface{}{
			"id": "job-1",
			"attributes": map[string]interface{}{
				"status":  status,
				"stats":   map[string]int{},
				"results": map[string]interface{}{},
			},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, _ := json.Marshal(v)
	w.Write(data)
}

func newTestClient(server *httptest.Server) *Client {
	return NewClient(server.Client(), Options{
		BaseURL:      server.URL,
		APIKey:       "test-key",
		PollAttempts: 3,
		PollInterval: time.Millisecond,
	})
}

// TestSubmit_URLSendsFormEncodedBody verifies the URL submission request shape.
func TestSubmit_URLSendsFormEncodedBody(t *testing.T) {
	var gotPath, gotKey, gotCT, gotURL string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-apikey")
		gotCT = r.Header.Get("Content-Type")
		r.ParseForm()
		gotURL = r.PostForm.Get("url")
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]string{"id": "u-123", "type": "analysis"}})
	}))
	defer server.Close()

	job, err := newTestClient(server).Submit(context.Background(), models.URLTarget("http://cpf-update.xyz"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if job.ID != "u-123" {
		t.Errorf("job.ID = %q, want u-123", job.ID)
	}
	if job.SubmittedAt.IsZero() {
		t.Error("SubmittedAt should be set")
	}
	if gotPath != "/urls" {
		t.Errorf("path = %q, want /urls", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("x-apikey = %q, want test-key", gotKey)
	}
	if gotCT != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", gotCT)
	}
	if gotURL != "http://cpf-update.xyz" {
		t.Errorf("form url = %q", gotURL)
	}
}

// TestSubmit_FileSendsMultipart verifies filename, MIME type and bytes are uploaded.
func TestSubmit_FileSendsMultipart(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		wantMIME string
	}{
		{name: "declared type", mimeType: "application/pdf", wantMIME: "application/pdf"},
		{name: "unknown type", mimeType: "", wantMIME: "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotName, gotMIME, gotBody string

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/files" {
					t.Errorf("path = %q, want /files", r.URL.Path)
				}
				file, header, err := r.FormFile("file")
				if err != nil {
					t.Errorf("FormFile: %v", err)
					writeJSON(w, http.StatusBadRequest, map[string]string{})
					return
				}
				defer file.Close()
				data, _ := io.ReadAll(file)
				gotName = header.Filename
				gotMIME = header.Header.Get("Content-Type")
				gotBody = string(data)
				writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]string{"id": "f-1"}})
			}))
			defer server.Close()

			target := models.FileTarget("invoice.pdf", tt.mimeType, strings.NewReader("%PDF-1.7 body"))
			job, err := newTestClient(server).Submit(context.Background(), target)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if job.ID != "f-1" {
				t.Errorf("job.ID = %q, want f-1", job.ID)
			}
			if gotName != "invoice.pdf" {
				t.Errorf("filename = %q, want invoice.pdf", gotName)
			}
			if gotMIME != tt.wantMIME {
				t.Errorf("part Content-Type = %q, want %q", gotMIME, tt.wantMIME)
			}
			if gotBody != "%PDF-1.7 body" {
				t.Errorf("body = %q", gotBody)
			}
		})
	}
}

// TestSubmit_ErrorClassification verifies InvalidInput is distinguished from network failures.
func TestSubmit_ErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantInvalid bool
		wantNetwork bool
	}{
		{name: "no data object", status: http.StatusOK, body: `{"error":{"code":"InvalidArgumentError"}}`, wantInvalid: true},
		{name: "empty id", status: http.StatusOK, body: `{"data":{"id":""}}`, wantInvalid: true},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"message":"Unable to canonicalize url"}}`, wantInvalid: true},
		{name: "server error", status: http.StatusBadGateway, body: `{"error":{}}`, wantNetwork: true},
		{name: "quota exceeded", status: http.StatusTooManyRequests, body: `{"error":{"code":"QuotaExceededError"}}`, wantNetwork: true},
		{name: "not json", status: http.StatusOK, body: `<html>maintenance</html>`, wantNetwork: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := newTestClient(server).Submit(context.Background(), models.URLTarget("not a url"))
			if err == nil {
				t.Fatal("expected error, got none")
			}
			if got := errors.Is(err, ErrInvalidInput); got != tt.wantInvalid {
				t.Errorf("errors.Is(err, ErrInvalidInput) = %v, want %v (err: %v)", got, tt.wantInvalid, err)
			}
			if got := errors.Is(err, ErrNetwork); got != tt.wantNetwork {
				t.Errorf("errors.Is(err, ErrNetwork) = %v, want %v (err: %v)", got, tt.wantNetwork, err)
			}
		})
	}
}

// TestSubmit_TransportFailureIsNetwork verifies an unreachable service is a network error.
func TestSubmit_TransportFailureIsNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening any more

	c := NewClient(&http.Client{Timeout: time.Second}, Options{BaseURL: server.URL, APIKey: "k"})
	_, err := c.Submit(context.Background(), models.URLTarget("example.com"))
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("err = %v, want ErrNetwork", err)
	}
	if errors.Is(err, ErrInvalidInput) {
		t.Error("transport failure must not be classified as invalid input")
	}
}

// failingReader errors on the first read, like an upload cut off mid-stream.
type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset by peer") }

// TestSubmit_UnreadableFileIsInvalidInput verifies an upload that cannot be
// read is classified as invalid input and never reaches the service.
func TestSubmit_UnreadableFileIsInvalidInput(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	c := newTestClient(server)
	_, err := c.Submit(context.Background(), models.FileTarget("invoice.pdf", "application/pdf", failingReader{}))

	var se *SubmissionError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SubmissionError", err)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	if errors.Is(err, ErrNetwork) {
		t.Error("unreadable upload must not be classified as a network error")
	}
	if !strings.Contains(err.Error(), "connection reset by peer") {
		t.Errorf("err = %q, want the read error included", err.Error())
	}
	if got := atomic.LoadInt32(&hits); got != 0 {
		t.Errorf("service received %d requests, want 0", got)
	}
}

// TestSubmit_UnsupportedTarget verifies text targets are refused locally.
func TestSubmit_UnsupportedTarget(t *testing.T) {
	c := NewClient(nil, Options{BaseURL: "http://127.0.0.1:1"})
	_, err := c.Submit(context.Background(), models.TextTarget("hello"))
	if !errors.Is(err, ErrUnsupportedTarget) {
		t.Errorf("err = %v, want ErrUnsupportedTarget", err)
	}
}

// TestPoll_InterpretsStatus verifies pending/completed interpretation and engine counting.
func TestPoll_InterpretsStatus(t *testing.T) {
	tests := []struct {
		name        string
		body        interface{}
		wantStatus  models.OutcomeStatus
		wantMal     int
		wantSus     int
		wantEngines int
	}{
		{
			name:       "null attributes",
			body:       map[string]interface{}{"data": map[string]interface{}{"id": "job-1", "attributes": nil}},
			wantStatus: models.OutcomePending,
		},
		{
			name:       "queued",
			body:       pendingBody("queued"),
			wantStatus: models.OutcomePending,
		},
		{
			name:       "in progress",
			body:       pendingBody("in-progress"),
			wantStatus: models.OutcomePending,
		},
		{
			name:        "completed",
			body:        completedBody(5, 3, 70),
			wantStatus:  models.OutcomeCompleted,
			wantMal:     5,
			wantSus:     3,
			wantEngines: 70,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/analyses/job-1" {
					t.Errorf("path = %q, want /analyses/job-1", r.URL.Path)
				}
				writeJSON(w, http.StatusOK, tt.body)
			}))
			defer server.Close()

			out, err := newTestClient(server).Poll(context.Background(), "job-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", out.Status, tt.wantStatus)
			}
			if out.Malicious != tt.wantMal || out.Suspicious != tt.wantSus || out.TotalEngines != tt.wantEngines {
				t.Errorf("counts = %d/%d/%d, want %d/%d/%d",
					out.Malicious, out.Suspicious, out.TotalEngines,
					tt.wantMal, tt.wantSus, tt.wantEngines)
			}
		})
	}
}

// TestPollUntilTerminal_RetryCeiling verifies exactly three polls against a
// service that never completes, followed by a TimeoutError.
func TestPollUntilTerminal_RetryCeiling(t *testing.T) {
	var polls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&polls, 1)
		writeJSON(w, http.StatusOK, pendingBody("queued"))
	}))
	defer server.Close()

	var attempts []int
	_, err := newTestClient(server).PollUntilTerminal(context.Background(), "job-1", func(attempt, maxAttempts int) {
		if maxAttempts != 3 {
			t.Errorf("maxAttempts = %d, want 3", maxAttempts)
		}
		attempts = append(attempts, attempt)
	})

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	var te *TimeoutError
	if !errors.As(err, &te) || te.Attempts != 3 {
		t.Errorf("TimeoutError = %+v, want Attempts=3", te)
	}
	if got := atomic.LoadInt32(&polls); got != 3 {
		t.Errorf("poll calls = %d, want exactly 3", got)
	}
	if len(attempts) != 3 || attempts[0] != 1 || attempts[2] != 3 {
		t.Errorf("attempt callbacks = %v, want [1 2 3]", attempts)
	}
}

// TestPollUntilTerminal_CompletesOnLaterAttempt verifies polling stops once terminal.
func TestPollUntilTerminal_CompletesOnLaterAttempt(t *testing.T) {
	var polls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) < 2 {
			writeJSON(w, http.StatusOK, pendingBody("queued"))
			return
		}
		writeJSON(w, http.StatusOK, completedBody(0, 1, 70))
	}))
	defer server.Close()

	out, err := newTestClient(server).PollUntilTerminal(context.Background(), "job-1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != models.OutcomeCompleted || out.Suspicious != 1 || out.TotalEngines != 70 {
		t.Errorf("outcome = %+v", out)
	}
	if got := atomic.LoadInt32(&polls); got != 2 {
		t.Errorf("poll calls = %d, want 2", got)
	}
}

// TestPollUntilTerminal_FailsFastOnHTTPError verifies 4xx/5xx are not retried.
func TestPollUntilTerminal_FailsFastOnHTTPError(t *testing.T) {
	var polls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&polls, 1)
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": map[string]string{"code": "NotFoundError"}})
	}))
	defer server.Close()

	out, err := newTestClient(server).PollUntilTerminal(context.Background(), "job-1", nil)

	var pe *PollError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *PollError", err)
	}
	if pe.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", pe.StatusCode)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("HTTP error must not be reported as a timeout")
	}
	if out.Status != models.OutcomeFailed {
		t.Errorf("outcome status = %q, want failed", out.Status)
	}
	if got := atomic.LoadInt32(&polls); got != 1 {
		t.Errorf("poll calls = %d, want 1", got)
	}
}

// flakyTransport fails the first n round trips with a transport error.
type flakyTransport struct {
	mu       sync.Mutex
	failures int
	base     http.RoundTripper
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return nil, errors.New("connection reset by peer")
	}
	return f.base.RoundTrip(req)
}

// TestPollUntilTerminal_RetriesTransientErrors verifies transport failures
// consume an attempt and are retried.
func TestPollUntilTerminal_RetriesTransientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, completedBody(1, 0, 10))
	}))
	defer server.Close()

	httpClient := &http.Client{Transport: &flakyTransport{failures: 1, base: server.Client().Transport}}
	c := NewClient(httpClient, Options{BaseURL: server.URL, APIKey: "k", PollInterval: time.Millisecond})

	out, err := c.PollUntilTerminal(context.Background(), "job-1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Malicious != 1 || out.TotalEngines != 10 {
		t.Errorf("outcome = %+v", out)
	}
}

// TestPollUntilTerminal_TransientExhaustion verifies the last transient error
// is attached to the TimeoutError.
func TestPollUntilTerminal_TransientExhaustion(t *testing.T) {
	httpClient := &http.Client{Transport: &flakyTransport{failures: 10, base: http.DefaultTransport}}
	c := NewClient(httpClient, Options{BaseURL: "http://analysis.invalid", PollInterval: time.Millisecond})

	_, err := c.PollUntilTerminal(context.Background(), "job-1", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("expected the wrapped transient error to match ErrNetwork: %v", err)
	}
}

// TestPollUntilTerminal_HonoursCancellation verifies the wait between attempts
// is abandoned when the context is cancelled.
func TestPollUntilTerminal_HonoursCancellation(t *testing.T) {
	var polls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&polls, 1)
		writeJSON(w, http.StatusOK, pendingBody("queued"))
	}))
	defer server.Close()

	c := NewClient(server.Client(), Options{BaseURL: server.URL, PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := c.PollUntilTerminal(ctx, "job-1", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation was not honoured during the poll interval")
	}
	if got := atomic.LoadInt32(&polls); got != 1 {
		t.Errorf("poll calls = %d, want 1", got)
	}
}
