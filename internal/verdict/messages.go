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

package verdict

import (
	"strings"

	"github.com/phishnchips/scamscan/internal/models"
)

// Aggregate headers for text scans. Each is followed by newline-joined subjects.
const (
	ScamHeader      = "Beware! The following links/emails are suspicious:\n"
	TrustedHeader   = "The following links/emails are from trusted sources:\n"
	UncheckedHeader = "The following links/emails could not be checked:\n"

	NoSuspiciousContent = "No suspicious content detected."
)

// Message renders the verdict text for one artifact.
func Message(target models.TargetKind, kind models.VerdictKind, subject string) string {
	if kind == models.VerdictSuspicious {
		switch target {
		case models.TargetFile:
			return "Beware! Suspicious file detected:\n" + subject
		case models.TargetEmail:
			return "Beware! Suspicious email detected:\n" + subject
		default:
			return "Beware! Suspicious URL detected:\n" + subject
		}
	}
	switch target {
	case models.TargetFile:
		return "File is from a trusted source:\n" + subject
	case models.TargetEmail:
		return "Email is from a trusted source:\n" + subject
	default:
		return "Link is from a trusted source:\n" + subject
	}
}

// InvalidMessage is shown when the service rejected the submission.
func InvalidMessage(target models.TargetKind, subject string) string {
	switch target {
	case models.TargetFile:
		return "Error, Invalid File: " + subject
	case models.TargetEmail:
		return "Error, Invalid email: " + subject
	default:
		return "Error, Invalid URL/domain: " + subject
	}
}

// FailedMessage is shown when polling timed out or failed.
func FailedMessage(target models.TargetKind) string {
	switch target {
	case models.TargetFile:
		return "Failed to analyze file, please try again."
	case models.TargetEmail:
		return "Failed to analyze email, please try again."
	default:
		return "Failed to analyze URL, please try again."
	}
}

// UnreachableMessage is shown when the submission never reached the service.
func UnreachableMessage(subject string) string {
	return "Error, could not reach the analysis service: " + subject
}

// Aggregate renders header followed by the newline-joined subjects. It
// returns "" for an empty list.
func Aggregate(header string, subjects []string) string {
	if len(subjects) == 0 {
		return ""
	}
	return header + strings.Join(subjects, "\n")
}
