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

package scanner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/phishnchips/scamscan/internal/analysis"
	"github.com/phishnchips/scamscan/internal/models"
	"github.com/phishnchips/scamscan/internal/verdict"
)

// fakeVerifier returns a canned verification result.
type fakeVerifier struct {
	mu     sync.Mutex
	calls  []string
	result VerifyResult
	err    error
}

func (f *fakeVerifier) Verify(_ context.Context, email string) (VerifyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, email)
	return f.result, f.err
}

// TestEmailScanner_DomainScan verifies the registrable domain is analysed and
// the message names the address.
func TestEmailScanner_DomainScan(t *testing.T) {
	tests := []struct {
		name        string
		verifier    Verifier
		outcome     models.AnalysisOutcome
		wantMessage string
	}{
		{
			name:        "no verifier, suspicious domain",
			outcome:     completed(9, 0, 70),
			wantMessage: "Beware! Suspicious email detected:\nalerts@mail.bank-secure.co.uk",
		},
		{
			name:        "valid mailbox, trusted domain",
			verifier:    &fakeVerifier{result: VerifyResult{Result: "valid"}},
			outcome:     completed(0, 0, 70),
			wantMessage: "Email is from a trusted source:\nalerts@mail.bank-secure.co.uk",
		},
		{
			name:        "verifier error falls through",
			verifier:    &fakeVerifier{err: errors.New("quota exceeded")},
			outcome:     completed(0, 0, 70),
			wantMessage: "Email is from a trusted source:\nalerts@mail.bank-secure.co.uk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAnalyzer{outcome: tt.outcome}
			rec := &recorder{}

			v, err := NewEmailScanner(fa, verdict.DefaultPolicy(), tt.verifier).Scan(context.Background(), "alerts@mail.bank-secure.co.uk", rec.observer())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Target != models.TargetEmail || v.Subject != "alerts@mail.bank-secure.co.uk" {
				t.Errorf("verdict = %+v", v)
			}
			if got := rec.lastMessage(); got != tt.wantMessage {
				t.Errorf("message = %q, want %q", got, tt.wantMessage)
			}
			if len(fa.submitted) != 1 {
				t.Fatalf("submits = %d, want 1", len(fa.submitted))
			}
			if got := fa.submitted[0]; got.Kind() != models.TargetURL || got.Value() != "bank-secure.co.uk" {
				t.Errorf("submitted %s %q, want url bank-secure.co.uk", got.Kind(), got.Value())
			}
		})
	}
}

// TestEmailScanner_InvalidMailbox verifies a verifier "invalid" short-circuits the scan.
func TestEmailScanner_InvalidMailbox(t *testing.T) {
	fa := &fakeAnalyzer{}
	fv := &fakeVerifier{result: VerifyResult{Result: "invalid", Reason: "rejected_email"}}
	rec := &recorder{}

	v, err := NewEmailScanner(fa, verdict.DefaultPolicy(), fv).Scan(context.Background(), "ceo@paypa1.com", rec.observer())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsSuspicious() {
		t.Errorf("Kind = %q, want suspicious", v.Kind)
	}
	if got := rec.lastMessage(); got != "Beware! Suspicious email detected:\nceo@paypa1.com" {
		t.Errorf("message = %q", got)
	}
	if fa.submitCount() != 0 {
		t.Error("analysis should not run for an invalid mailbox")
	}
	if !rec.lastHasResult() || !rec.loadingEndedFalse() {
		t.Errorf("flags: hasResult=%v loading=%v", rec.hasResult, rec.loading)
	}
}

// TestEmailScanner_BadSyntax verifies malformed addresses never reach any service.
func TestEmailScanner_BadSyntax(t *testing.T) {
	fa := &fakeAnalyzer{}
	fv := &fakeVerifier{}
	rec := &recorder{}

	_, err := NewEmailScanner(fa, verdict.DefaultPolicy(), fv).Scan(context.Background(), "not-an-email", rec.observer())
	if !errors.Is(err, analysis.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	if got := rec.lastMessage(); got != "Error, Invalid email: not-an-email" {
		t.Errorf("message = %q", got)
	}
	if fa.submitCount() != 0 || len(fv.calls) != 0 {
		t.Error("no service should be called for a malformed address")
	}
	if !rec.loadingEndedFalse() {
		t.Errorf("loading = %v, want true then false", rec.loading)
	}
}

// TestRegistrableDomain verifies eTLD+1 reduction.
func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"a@example.com", "example.com"},
		{"a@mail.example.com", "example.com"},
		{"a@MAIL.Bank.CO.UK", "bank.co.uk"},
		{"a@user.github.io", "user.github.io"},
		{"a@localhost.co", "localhost.co"},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if got := RegistrableDomain(tt.email); got != tt.want {
				t.Errorf("RegistrableDomain(%q) = %q, want %q", tt.email, got, tt.want)
			}
		})
	}
}

// TestEmailVerifier_Verify verifies the request shape and response parsing.
func TestEmailVerifier_Verify(t *testing.T) {
	var gotEmail, gotKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" {
			t.Errorf("path = %q, want /verify", r.URL.Path)
		}
		gotEmail = r.URL.Query().Get("email")
		gotKey = r.URL.Query().Get("apikey")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":"invalid","reason":"rejected_email","disposable":"false","success":"true","email":"x+y@example.com"}`))
	}))
	defer server.Close()

	v := NewEmailVerifier(server.Client(), server.URL+"/", "qev-key")
	res, err := v.Verify(context.Background(), "x+y@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Invalid() || res.Reason != "rejected_email" {
		t.Errorf("result = %+v", res)
	}
	if gotEmail != "x+y@example.com" {
		t.Errorf("email param = %q, want x+y@example.com", gotEmail)
	}
	if gotKey != "qev-key" {
		t.Errorf("apikey param = %q, want qev-key", gotKey)
	}
}

// TestEmailVerifier_HTTPError verifies non-200 responses are errors.
func TestEmailVerifier_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":"false","message":"Invalid API key"}`))
	}))
	defer server.Close()

	_, err := NewEmailVerifier(server.Client(), server.URL, "bad").Verify(context.Background(), "a@b.com")
	if err == nil {
		t.Fatal("expected error, got none")
	}
}
