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
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/phishnchips/scamscan/internal/analysis"
	"github.com/phishnchips/scamscan/internal/extract"
	"github.com/phishnchips/scamscan/internal/models"
	"github.com/phishnchips/scamscan/internal/verdict"
)

// Verifier checks whether a mailbox exists. A nil Verifier disables the check.
type Verifier interface {
	Verify(ctx context.Context, email string) (VerifyResult, error)
}

// EmailScanner scans an e-mail address: an optional mailbox check, then the
// registrable domain goes through the same analysis and ratio policy as a URL.
type EmailScanner struct {
	engine
	verifier Verifier
}

// NewEmailScanner creates an e-mail scanner. verifier may be nil.
func NewEmailScanner(a Analyzer, policy verdict.Policy, verifier Verifier) *EmailScanner {
	return &EmailScanner{engine: newEngine(a, policy), verifier: verifier}
}

// Scan classifies one address.
func (e *EmailScanner) Scan(ctx context.Context, email string, obs Observer) (*models.Verdict, error) {
	email = strings.TrimSpace(email)

	s := e.begin(obs, models.TargetEmail, email)
	defer obs.loading(false)

	if !extract.IsEmail(email) {
		return nil, s.fail(verdict.InvalidMessage(models.TargetEmail, email), fmt.Errorf("%w: %q is not an e-mail address", analysis.ErrInvalidInput, email))
	}

	if e.verifier != nil {
		res, err := e.verifier.Verify(ctx, email)
		switch {
		case err != nil:
			slog.Warn("email verification failed, scanning domain only",
				"scan_id", s.id,
				"subject", email,
				"error", err,
			)
		case res.Invalid():
			return s.succeed(&models.Verdict{
				Kind:    models.VerdictSuspicious,
				Subject: email,
				Target:  models.TargetEmail,
				Message: verdict.Message(models.TargetEmail, models.VerdictSuspicious, email),
			}), nil
		}
	}

	return e.run(ctx, s, models.URLTarget(RegistrableDomain(email)))
}

// RegistrableDomain returns the eTLD+1 of the address's domain, e.g.
// "mail.bank.co.uk" becomes "bank.co.uk". The raw domain is returned when the
// public suffix list cannot place it.
func RegistrableDomain(email string) string {
	domain := strings.ToLower(email[strings.LastIndexByte(email, '@')+1:])
	domain = strings.TrimSuffix(domain, ".")
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(domain); err == nil {
		return etld1
	}
	return domain
}
