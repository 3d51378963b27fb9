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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/phishnchips/scamscan/internal/analysis"
	"github.com/phishnchips/scamscan/internal/dedup"
	"github.com/phishnchips/scamscan/internal/history"
	"github.com/phishnchips/scamscan/internal/models"
	"github.com/phishnchips/scamscan/internal/scanner"
	"github.com/phishnchips/scamscan/internal/textscan"
)

// ScanResponse is returned for single-artifact scans.
type ScanResponse struct {
	ScanID    string          `json:"scan_id"`
	Message   string          `json:"message"`
	HasResult bool            `json:"has_result"`
	Verdict   *models.Verdict `json:"verdict,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// TextResponse is returned for text scans.
type TextResponse struct {
	*textscan.Report
	Error string `json:"error,omitempty"`
}

type subjectRequest struct {
	URL   string `json:"url"`
	Email string `json:"email"`
	Text  string `json:"text"`
}

type reportRequest struct {
	Kind     models.TargetKind `json:"kind"`
	Subject  string            `json:"subject"`
	Note     string            `json:"note"`
	Reporter string            `json:"reporter"`
}

// decodeJSON reads a size-capped JSON body into v. It writes the error
// response and returns false on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxTextBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// --- Scans ---

func (s *Server) handleScanURL(w http.ResponseWriter, r *http.Request) {
	var req subjectRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, status := s.runSubject(r.Context(), s.deps.URLs, req.URL, nil)
	writeJSON(w, status, resp)
}

func (s *Server) handleScanEmail(w http.ResponseWriter, r *http.Request) {
	var req subjectRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, status := s.runSubject(r.Context(), s.deps.Emails, req.Email, nil)
	writeJSON(w, status, resp)
}

func (s *Server) handleScanFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.deps.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, `multipart field "file" is required`)
		return
	}
	defer file.Close()

	in := scanner.FileInput{
		Name:     header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Content:  file,
	}

	resp, status := s.collect(r.Context(), nil, func(obs scanner.Observer) (*models.Verdict, error) {
		return s.deps.Files.Scan(r.Context(), in, obs)
	})
	writeJSON(w, status, resp)
}

func (s *Server) handleScanText(w http.ResponseWriter, r *http.Request) {
	var req subjectRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, status := s.runText(r.Context(), req.Text, nil)
	writeJSON(w, status, resp)
}

func (s *Server) runSubject(ctx context.Context, sc SubjectScanner, subject string, onEvent func(models.ScanEvent)) (*ScanResponse, int) {
	return s.collect(ctx, onEvent, func(obs scanner.Observer) (*models.Verdict, error) {
		return sc.Scan(ctx, subject, obs)
	})
}

// collect runs one scan with an observer that captures what a client would show.
func (s *Server) collect(ctx context.Context, onEvent func(models.ScanEvent), scan func(scanner.Observer) (*models.Verdict, error)) (*ScanResponse, int) {
	resp := &ScanResponse{}
	obs := scanner.Observer{
		OnMessage:   func(msg string) { resp.Message = msg },
		OnHasResult: func(has bool) { resp.HasResult = has },
		OnEvent: func(ev models.ScanEvent) {
			if resp.ScanID == "" {
				resp.ScanID = ev.ScanID
			}
			if onEvent != nil {
				onEvent(ev)
			}
		},
	}

	v, err := scan(obs)
	resp.Verdict = v
	if err != nil {
		resp.Error = err.Error()
		return resp, statusFor(err)
	}

	s.record(ctx, v)
	return resp, http.StatusOK
}

func (s *Server) runText(ctx context.Context, text string, onEvent func(models.ScanEvent)) (*TextResponse, int) {
	report, err := s.deps.Text.Scan(ctx, text, textscan.TextObserver{OnEvent: onEvent})
	resp := &TextResponse{Report: report}
	if report != nil {
		for _, res := range report.Results {
			if res.Verdict != nil {
				s.record(ctx, res.Verdict)
			}
		}
	}
	if err != nil {
		resp.Error = err.Error()
		return resp, http.StatusServiceUnavailable
	}
	return resp, http.StatusOK
}

// statusFor maps scan errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, analysis.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, analysis.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) record(ctx context.Context, v *models.Verdict) {
	if s.deps.History == nil || v == nil {
		return
	}
	if err := s.deps.History.Record(context.WithoutCancel(ctx), history.FromVerdict(v)); err != nil {
		slog.Error("failed to record scan history", "subject", v.Subject, "error", err)
	}
}

// --- WebSocket ---

// wsFrame is one message on the scan stream.
type wsFrame struct {
	Type   string            `json:"type"` // "event", "result" or "error"
	Event  *models.ScanEvent `json:"event,omitempty"`
	Result any               `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// handleScanWS streams scan events, then the final response, over a WebSocket.
func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	kind := strings.ToLower(r.URL.Query().Get("kind"))
	input := r.URL.Query().Get("input")

	if kind != "url" && kind != "email" && kind != "text" {
		writeError(w, http.StatusBadRequest, "kind must be url, email or text")
		return
	}
	if strings.TrimSpace(input) == "" {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}
	if int64(len(input)) > s.deps.MaxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("input exceeds %d bytes", s.deps.MaxTextBytes))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("upgrading to websocket", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var mu sync.Mutex
	send := func(f wsFrame) {
		mu.Lock()
		defer mu.Unlock()
		if err := conn.WriteJSON(f); err != nil {
			// Assume client disconnected; abandon the scan.
			cancel()
		}
	}
	onEvent := func(ev models.ScanEvent) { send(wsFrame{Type: "event", Event: &ev}) }

	var result any
	switch kind {
	case "url":
		result, _ = s.runSubject(ctx, s.deps.URLs, input, onEvent)
	case "email":
		result, _ = s.runSubject(ctx, s.deps.Emails, input, onEvent)
	case "text":
		result, _ = s.runText(ctx, input, onEvent)
	}

	send(wsFrame{Type: "result", Result: result})
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "scan complete"))
}

// --- Reports ---

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reports == nil {
		writeError(w, http.StatusServiceUnavailable, "reporting is not configured")
		return
	}

	var req reportRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	req.Subject = strings.TrimSpace(req.Subject)
	if req.Subject == "" {
		writeError(w, http.StatusBadRequest, "subject is required")
		return
	}
	switch req.Kind {
	case models.TargetURL, models.TargetEmail, models.TargetFile, models.TargetText:
	default:
		writeError(w, http.StatusBadRequest, "kind must be url, email, file or text")
		return
	}

	report := &models.Report{
		Kind:     req.Kind,
		Subject:  req.Subject,
		Note:     req.Note,
		Reporter: req.Reporter,
	}

	if s.deps.Dedup != nil {
		isNew, err := s.deps.Dedup.IsNew(r.Context(), dedup.ReportKey(report))
		if err != nil {
			// Fail open: a duplicate report is cheaper than a lost one.
			slog.Warn("report dedup check failed", "subject", report.Subject, "error", err)
		} else if !isNew {
			writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
			return
		}
	}

	if err := s.deps.Reports.PublishReport(r.Context(), report); err != nil {
		slog.Error("failed to publish report", "subject", report.Subject, "error", err)
		writeError(w, http.StatusBadGateway, "could not queue report")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "id": report.ID})
}

// --- History ---

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not configured")
		return
	}

	limit := history.DefaultRecentLimit
	if ls := r.URL.Query().Get("limit"); ls != "" {
		v, err := strconv.Atoi(ls)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = v
	}

	entries, err := s.deps.History.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("failed to read history", "error", err)
		writeError(w, http.StatusInternalServerError, "could not read history")
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.deps.Checks))
	for name := range s.deps.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.deps.Checks[name](r.Context()); err != nil {
			slog.Warn("health check failed", "check", name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "check": name})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
