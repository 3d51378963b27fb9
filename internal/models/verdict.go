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

package models

import "time"

// OutcomeStatus is the state reported by one poll of the analysis service.
type OutcomeStatus string

const (
	OutcomePending   OutcomeStatus = "pending"
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeFailed    OutcomeStatus = "failed"
)

// AnalysisOutcome is the interpreted result of polling a job.
type AnalysisOutcome struct {
	Status OutcomeStatus `json:"status"`

	// Populated when Status is completed. TotalEngines counts the distinct
	// per-engine entries in the results payload.
	Malicious    int `json:"malicious"`
	Suspicious   int `json:"suspicious"`
	TotalEngines int `json:"total_engines"`

	// Populated when Status is failed.
	Reason string `json:"reason,omitempty"`
}

// Pending reports whether the job has not reached a terminal state.
func (o AnalysisOutcome) Pending() bool { return o.Status == OutcomePending }

// VerdictKind is the binary classification of a completed analysis.
type VerdictKind string

const (
	VerdictTrusted    VerdictKind = "trusted"
	VerdictSuspicious VerdictKind = "suspicious"
)

// Verdict is the user-facing classification of one artifact or entity.
type Verdict struct {
	Kind         VerdictKind `json:"kind"`
	Subject      string      `json:"subject"`
	Target       TargetKind  `json:"target"`
	Malicious    int         `json:"malicious"`
	Suspicious   int         `json:"suspicious"`
	TotalEngines int         `json:"total_engines"`
	Ratio        float64     `json:"ratio"`
	Message      string      `json:"message"`
}

// IsSuspicious is a convenience for Kind == VerdictSuspicious.
func (v *Verdict) IsSuspicious() bool {
	return v != nil && v.Kind == VerdictSuspicious
}

// EntityKind is the type of an entity extracted from free text.
type EntityKind string

const (
	EntityURL   EntityKind = "url"
	EntityEmail EntityKind = "email"
)

// Entity is a URL or e-mail address found inside a text blob.
type Entity struct {
	Kind   EntityKind `json:"kind"`
	Value  string     `json:"value"`
	Offset int        `json:"offset"`
}

// EventType enumerates the discrete state transitions of a scan.
type EventType string

const (
	EventStarted   EventType = "started"
	EventSubmitted EventType = "submitted"
	EventPolling   EventType = "polling"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// ScanEvent is one progress notification emitted while a scan runs.
type ScanEvent struct {
	ScanID      string    `json:"scan_id"`
	Type        EventType `json:"type"`
	Subject     string    `json:"subject"`
	JobID       string    `json:"job_id,omitempty"`
	Attempt     int       `json:"attempt,omitempty"`
	MaxAttempts int       `json:"max_attempts,omitempty"`
	Verdict     *Verdict  `json:"verdict,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

// Report is a scam report filed by a user for the community feed.
type Report struct {
	ID        string     `json:"id"`
	Kind      TargetKind `json:"kind"`
	Subject   string     `json:"subject"`
	Note      string     `json:"note,omitempty"`
	Reporter  string     `json:"reporter,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// HistoryEntry is an audit record of one completed scan.
type HistoryEntry struct {
	ID           string      `json:"id"`
	Kind         TargetKind  `json:"kind"`
	Subject      string      `json:"subject"`
	Verdict      VerdictKind `json:"verdict"`
	Malicious    int         `json:"malicious"`
	Suspicious   int         `json:"suspicious"`
	TotalEngines int         `json:"total_engines"`
	Ratio        float64     `json:"ratio"`
	Message      string      `json:"message"`
	CreatedAt    time.Time   `json:"created_at"`
}
