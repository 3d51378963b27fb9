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

// Package verdict turns engine statistics into a trusted/suspicious
// classification and renders the user-facing messages.
package verdict

import "github.com/phishnchips/scamscan/internal/models"

// DefaultSuspiciousRatio is the share of flagging engines at or above which an
// artifact is reported as suspicious. It is a tunable policy value.
const DefaultSuspiciousRatio = 0.1

// Policy classifies completed analyses.
type Policy struct {
	SuspiciousRatio float64
}

// DefaultPolicy returns the policy with DefaultSuspiciousRatio.
func DefaultPolicy() Policy {
	return Policy{SuspiciousRatio: DefaultSuspiciousRatio}
}

// NewPolicy returns a policy with the given threshold, falling back to the
// default when ratio is outside (0, 1].
func NewPolicy(ratio float64) Policy {
	if ratio <= 0 || ratio > 1 {
		return DefaultPolicy()
	}
	return Policy{SuspiciousRatio: ratio}
}

// Ratio returns (malicious+suspicious)/total, or 0 when total is zero.
func Ratio(malicious, suspicious, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(malicious+suspicious) / float64(total)
}

// Classify maps statistics to a verdict kind. Zero engines is Trusted.
// The threshold is inclusive.
func (p Policy) Classify(malicious, suspicious, total int) models.VerdictKind {
	if total <= 0 {
		return models.VerdictTrusted
	}
	threshold := p.SuspiciousRatio
	if threshold <= 0 {
		threshold = DefaultSuspiciousRatio
	}
	if Ratio(malicious, suspicious, total) >= threshold {
		return models.VerdictSuspicious
	}
	return models.VerdictTrusted
}

// Evaluate classifies a completed outcome for subject and builds the verdict,
// message included.
func (p Policy) Evaluate(target models.TargetKind, subject string, outcome models.AnalysisOutcome) *models.Verdict {
	kind := p.Classify(outcome.Malicious, outcome.Suspicious, outcome.TotalEngines)
	return &models.Verdict{
		Kind:         kind,
		Subject:      subject,
		Target:       target,
		Malicious:    outcome.Malicious,
		Suspicious:   outcome.Suspicious,
		TotalEngines: outcome.TotalEngines,
		Ratio:        Ratio(outcome.Malicious, outcome.Suspicious, outcome.TotalEngines),
		Message:      Message(target, kind, subject),
	}
}
