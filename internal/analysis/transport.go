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
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/phishnchips/scamscan/internal/config"
)

// DefaultRequestTimeout bounds every individual HTTP call so one slow request
// cannot consume the whole poll budget.
const DefaultRequestTimeout = 15 * time.Second

// NewHTTPClient builds the transport for the analysis service. When OAuth2
// client credentials are configured the client fetches and refreshes bearer
// tokens itself; the x-apikey header is still sent if an API key is set.
func NewHTTPClient(ctx context.Context, cfg config.AnalysisConfig) *http.Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	if !cfg.OAuth2.Enabled() {
		return &http.Client{Timeout: timeout}
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.OAuth2.ClientID,
		ClientSecret: cfg.OAuth2.ClientSecret,
		TokenURL:     cfg.OAuth2.TokenURL,
		Scopes:       cfg.OAuth2.Scopes,
	}

	slog.Info("analysis client using oauth2 client credentials", "token_url", cfg.OAuth2.TokenURL)

	client := creds.Client(ctx)
	client.Timeout = timeout
	return client
}

// OptionsFromConfig maps loaded configuration onto client options.
func OptionsFromConfig(cfg config.AnalysisConfig) Options {
	return Options{
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		PollAttempts: cfg.PollAttempts,
		PollInterval: cfg.PollInterval,
	}
}
