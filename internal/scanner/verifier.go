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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// VerifyResult is the subset of a mailbox verification response we act on.
// The service encodes booleans as strings.
type VerifyResult struct {
	Result     string `json:"result"`
	Reason     string `json:"reason"`
	Disposable string `json:"disposable"`
	Success    string `json:"success"`
}

// Invalid reports whether the mailbox was positively identified as bad.
func (r VerifyResult) Invalid() bool {
	return strings.EqualFold(r.Result, "invalid")
}

// EmailVerifier calls a QuickEmailVerification-compatible API.
//
// API docs: https://docs.quickemailverification.com/email-verification-api/verify-an-email-address
type EmailVerifier struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewEmailVerifier creates a verifier client.
func NewEmailVerifier(httpClient *http.Client, baseURL, apiKey string) *EmailVerifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &EmailVerifier{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// Verify checks one address.
func (v *EmailVerifier) Verify(ctx context.Context, email string) (VerifyResult, error) {
	q := url.Values{}
	q.Set("email", email)
	q.Set("apikey", v.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/verify?"+q.Encode(), nil)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("verify email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return VerifyResult{}, fmt.Errorf("verify email failed (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var res VerifyResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return VerifyResult{}, fmt.Errorf("decode verification: %w", err)
	}

	slog.Debug("email verified", "result", res.Result, "reason", res.Reason)
	return res, nil
}
