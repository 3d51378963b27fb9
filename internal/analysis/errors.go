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
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput matches submissions the remote service rejected outright.
	ErrInvalidInput = errors.New("artifact rejected by analysis service")
	// ErrNetwork matches transport-level failures.
	ErrNetwork = errors.New("analysis service unreachable")
	// ErrTimeout matches jobs still pending after the poll budget is spent.
	ErrTimeout = errors.New("analysis did not complete in time")
	// ErrUnsupportedTarget is returned for targets that cannot be submitted directly.
	ErrUnsupportedTarget = errors.New("target kind cannot be submitted")
)

// SubmissionKind classifies why a submission failed.
type SubmissionKind int

const (
	SubmissionInvalidInput SubmissionKind = iota
	SubmissionNetwork
)

// SubmissionError is returned by Submit.
type SubmissionError struct {
	Kind       SubmissionKind
	Subject    string
	StatusCode int
	Err        error
}

func (e *SubmissionError) Error() string {
	switch e.Kind {
	case SubmissionInvalidInput:
		if e.Err != nil {
			return fmt.Sprintf("submit %s: %v", e.Subject, e.Err)
		}
		if e.StatusCode != 0 {
			return fmt.Sprintf("submit %s: rejected (HTTP %d)", e.Subject, e.StatusCode)
		}
		return fmt.Sprintf("submit %s: response carried no job id", e.Subject)
	default:
		return fmt.Sprintf("submit %s: %v", e.Subject, e.Err)
	}
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Is lets errors.Is match the sentinel for the failure kind.
func (e *SubmissionError) Is(target error) bool {
	switch target {
	case ErrInvalidInput:
		return e.Kind == SubmissionInvalidInput
	case ErrNetwork:
		return e.Kind == SubmissionNetwork
	}
	return false
}

// PollError is returned by a single poll attempt. Transient errors are
// transport failures that PollUntilTerminal retries; all others fail fast.
type PollError struct {
	JobID      string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *PollError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("poll analysis %s failed (HTTP %d): %v", e.JobID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("poll analysis %s: %v", e.JobID, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// Is matches ErrNetwork for transient transport failures.
func (e *PollError) Is(target error) bool {
	return target == ErrNetwork && e.Transient
}

// TimeoutError is returned when the poll budget is exhausted. LastErr holds
// the final transient error, if the last attempt failed rather than pended.
type TimeoutError struct {
	JobID    string
	Attempts int
	LastErr  error
}

func (e *TimeoutError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("analysis %s still pending after %d attempts: %v", e.JobID, e.Attempts, e.LastErr)
	}
	return fmt.Sprintf("analysis %s still pending after %d attempts", e.JobID, e.Attempts)
}

func (e *TimeoutError) Unwrap() error { return e.LastErr }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
