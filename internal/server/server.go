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

// Package server exposes the scanners over HTTP and WebSocket. It stands in
// for the mobile client: each endpoint runs one scan and returns the same
// messages and flags the client would display.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/phishnchips/scamscan/internal/history"
	"github.com/phishnchips/scamscan/internal/models"
	"github.com/phishnchips/scamscan/internal/scanner"
	"github.com/phishnchips/scamscan/internal/textscan"
)

const (
	// DefaultMaxUploadBytes matches the analysis service's direct upload limit.
	DefaultMaxUploadBytes = 32 << 20
	// DefaultMaxTextBytes caps JSON scan bodies and WebSocket input.
	DefaultMaxTextBytes = 1 << 20
)

// SubjectScanner scans a URL or e-mail address.
type SubjectScanner interface {
	Scan(ctx context.Context, subject string, obs scanner.Observer) (*models.Verdict, error)
}

// FileScanner scans an uploaded file.
type FileScanner interface {
	Scan(ctx context.Context, in scanner.FileInput, obs scanner.Observer) (*models.Verdict, error)
}

// TextScanner scans a block of text.
type TextScanner interface {
	Scan(ctx context.Context, text string, obs textscan.TextObserver) (*textscan.Report, error)
}

// ReportPublisher queues scam reports.
type ReportPublisher interface {
	PublishReport(ctx context.Context, report *models.Report) error
}

// ReportFilter suppresses duplicate reports.
type ReportFilter interface {
	IsNew(ctx context.Context, key string) (bool, error)
}

// Deps are the collaborators the server routes to. Reports, Dedup and
// History are optional; their endpoints answer 503 when unset.
type Deps struct {
	URLs    SubjectScanner
	Emails  SubjectScanner
	Files   FileScanner
	Text    TextScanner
	Reports ReportPublisher
	Dedup   ReportFilter
	History history.Store

	// Checks are run by /health; a failing check makes the service unhealthy.
	Checks map[string]func(ctx context.Context) error

	MaxUploadBytes int64
	MaxTextBytes   int64
}

// Server routes API requests to the scanners.
type Server struct {
	deps     Deps
	router   chi.Router
	upgrader websocket.Upgrader
}

// New creates a server and registers its routes.
func New(deps Deps) *Server {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if deps.MaxTextBytes <= 0 {
		deps.MaxTextBytes = DefaultMaxTextBytes
	}
	s := &Server{
		deps:   deps,
		router: chi.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/scan/url", s.handleScanURL)
		r.Post("/scan/email", s.handleScanEmail)
		r.Post("/scan/file", s.handleScanFile)
		r.Post("/scan/text", s.handleScanText)
		r.Get("/ws/scan", s.handleScanWS)

		r.Post("/reports", s.handleCreateReport)
		r.Get("/history", s.handleHistory)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// Serve binds port and serves handler until ctx is cancelled. ready is closed
// once the listener is bound; stopped is closed when shutdown has drained
// in-flight requests.
func Serve(ctx context.Context, port int, handler http.Handler) (ready, stopped <-chan struct{}, err error) {
	server := &http.Server{
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No write timeout: scans and WebSocket streams outlive it.
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, nil, fmt.Errorf("bind api port %d: %w", port, err)
	}

	readyCh := make(chan struct{})
	stoppedCh := make(chan struct{})

	go func() {
		defer close(stoppedCh)
		<-ctx.Done()
		slog.Info("api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("api server shutdown error", "error", err)
			server.Close()
		}
	}()

	go func() {
		slog.Info("api server listening", "port", port)
		close(readyCh)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("api server error", "error", err)
		}
	}()

	return readyCh, stoppedCh, nil
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
