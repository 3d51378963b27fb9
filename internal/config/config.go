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

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAnalysisBaseURL = "https://www.virustotal.com/api/v3"
	DefaultVerifierBaseURL = "https://api.quickemailverification.com/v1"
)

// OAuth2Config holds client credentials for an OAuth2 gateway placed in
// front of the analysis service. Empty ClientID disables it.
type OAuth2Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// Enabled reports whether client credentials are configured.
func (o OAuth2Config) Enabled() bool {
	return o.ClientID != "" && o.TokenURL != ""
}

// AnalysisConfig configures the remote threat-intelligence service.
type AnalysisConfig struct {
	BaseURL        string
	APIKey         string
	PollAttempts   int
	PollInterval   time.Duration
	RequestTimeout time.Duration
	OAuth2         OAuth2Config
}

// VerifierConfig configures the optional e-mail deliverability checker.
// Empty APIKey disables it.
type VerifierConfig struct {
	BaseURL string
	APIKey  string
}

// Config holds all configuration for the scan service.
type Config struct {
	Analysis AnalysisConfig
	Verifier VerifierConfig

	// Detection ratio at or above which an artifact is suspicious.
	SuspiciousRatio float64

	// Maximum concurrent entity scans within one text scan.
	TextScanConcurrency int

	// Redis. Empty RedisURL disables scam reports.
	RedisURL     string
	ReportsQueue string

	// History store: "postgres", "sqlite" or "" (disabled)
	HistoryDriver string
	HistoryDSN    string

	// Server
	Port int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Analysis struct {
		BaseURL        string `yaml:"base_url"`
		APIKey         string `yaml:"api_key"`
		PollAttempts   int    `yaml:"poll_attempts"`
		PollInterval   string `yaml:"poll_interval"`
		RequestTimeout string `yaml:"request_timeout"`
		OAuth2         struct {
			ClientID     string   `yaml:"client_id"`
			ClientSecret string   `yaml:"client_secret"`
			TokenURL     string   `yaml:"token_url"`
			Scopes       []string `yaml:"scopes"`
		} `yaml:"oauth2"`
	} `yaml:"analysis"`
	EmailVerifier struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"email_verifier"`
	Policy struct {
		SuspiciousRatio float64 `yaml:"suspicious_ratio"`
	} `yaml:"policy"`
	TextScan struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"text_scan"`
	Redis struct {
		URL    string `yaml:"url"`
		Queues struct {
			Reports string `yaml:"reports"`
		} `yaml:"queues"`
	} `yaml:"redis"`
	History struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"history"`
	Port int `yaml:"port"`
}

// Load reads configuration from the file named by CONFIG_PATH (default
// config.yaml). A missing file is not an error: every setting can also come
// from the environment.
func Load() (*Config, error) {
	return LoadFile(envOrDefault("CONFIG_PATH", "config.yaml"))
}

// LoadFile reads configuration from path (with ${VAR} expansion), then fills
// unset values from environment variables and defaults.
func LoadFile(path string) (*Config, error) {
	var raw rawConfig

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Debug("config file not found, using environment only", "path", path)
	case err != nil:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	default:
		// Expand ${VAR} references in the YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	}

	cfg := &Config{
		Analysis: AnalysisConfig{
			BaseURL:        firstNonEmpty(raw.Analysis.BaseURL, envOrDefault("ANALYSIS_BASE_URL", DefaultAnalysisBaseURL)),
			APIKey:         firstNonEmpty(raw.Analysis.APIKey, os.Getenv("VIRUSTOTAL_API_KEY")),
			PollAttempts:   firstPositive(raw.Analysis.PollAttempts, envOrDefaultInt("POLL_ATTEMPTS", 3)),
			PollInterval:   durationOr(raw.Analysis.PollInterval, envOrDefaultDuration("POLL_INTERVAL", 10*time.Second)),
			RequestTimeout: durationOr(raw.Analysis.RequestTimeout, envOrDefaultDuration("REQUEST_TIMEOUT", 15*time.Second)),
			OAuth2: OAuth2Config{
				ClientID:     raw.Analysis.OAuth2.ClientID,
				ClientSecret: raw.Analysis.OAuth2.ClientSecret,
				TokenURL:     raw.Analysis.OAuth2.TokenURL,
				Scopes:       raw.Analysis.OAuth2.Scopes,
			},
		},
		Verifier: VerifierConfig{
			BaseURL: firstNonEmpty(raw.EmailVerifier.BaseURL, envOrDefault("EMAIL_VERIFIER_BASE_URL", DefaultVerifierBaseURL)),
			APIKey:  firstNonEmpty(raw.EmailVerifier.APIKey, os.Getenv("EMAIL_CHECKER_API_KEY")),
		},
		SuspiciousRatio:     raw.Policy.SuspiciousRatio,
		TextScanConcurrency: firstPositive(raw.TextScan.Concurrency, envOrDefaultInt("TEXT_SCAN_CONCURRENCY", 4)),
		RedisURL:            firstNonEmpty(raw.Redis.URL, os.Getenv("REDIS_URL")),
		ReportsQueue:        firstNonEmpty(raw.Redis.Queues.Reports, envOrDefault("REPORTS_QUEUE", "reports")),
		HistoryDriver:       strings.ToLower(firstNonEmpty(raw.History.Driver, os.Getenv("HISTORY_DRIVER"))),
		HistoryDSN:          firstNonEmpty(raw.History.DSN, os.Getenv("DATABASE_URL")),
		Port:                firstPositive(raw.Port, envOrDefaultInt("PORT", 8080)),
	}

	if cfg.SuspiciousRatio == 0 {
		cfg.SuspiciousRatio = envOrDefaultFloat("SUSPICIOUS_RATIO", 0.1)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required settings are present and in range.
func (c *Config) Validate() error {
	if c.Analysis.APIKey == "" && !c.Analysis.OAuth2.Enabled() {
		return fmt.Errorf("no analysis API key configured: set analysis.api_key or VIRUSTOTAL_API_KEY")
	}
	if c.Analysis.PollAttempts < 1 {
		return fmt.Errorf("poll_attempts must be at least 1, got %d", c.Analysis.PollAttempts)
	}
	if c.SuspiciousRatio <= 0 || c.SuspiciousRatio > 1 {
		return fmt.Errorf("suspicious_ratio must be in (0, 1], got %v", c.SuspiciousRatio)
	}
	switch c.HistoryDriver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown history driver %q", c.HistoryDriver)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// durationOr parses a YAML duration string, falling back on empty or bad input.
func durationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("ignoring invalid duration in config", "value", raw, "error", err)
		return fallback
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
