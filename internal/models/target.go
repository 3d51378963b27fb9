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

// Package models defines the data structures shared across the scan service.
package models

import (
	"io"
	"time"
)

// DefaultMIMEType is declared for uploaded files whose type is unknown.
const DefaultMIMEType = "application/octet-stream"

// TargetKind identifies which variant of ScanTarget is populated.
type TargetKind string

const (
	TargetURL   TargetKind = "url"
	TargetFile  TargetKind = "file"
	TargetText  TargetKind = "text"
	TargetEmail TargetKind = "email"
)

// ScanTarget is the artifact a user submitted for scanning. Build one with
// URLTarget, FileTarget, TextTarget or EmailTarget; fields are unexported so
// a target cannot change after submission.
type ScanTarget struct {
	kind     TargetKind
	value    string
	fileName string
	mimeType string
	content  io.Reader
}

// URLTarget wraps a raw URL or bare domain.
func URLTarget(url string) ScanTarget {
	return ScanTarget{kind: TargetURL, value: url}
}

// FileTarget wraps an uploaded file. An empty mimeType falls back to
// DefaultMIMEType when the file is submitted.
func FileTarget(name, mimeType string, content io.Reader) ScanTarget {
	return ScanTarget{kind: TargetFile, fileName: name, mimeType: mimeType, content: content}
}

// TextTarget wraps a block of free text (an SMS, an e-mail body, a chat message).
func TextTarget(text string) ScanTarget {
	return ScanTarget{kind: TargetText, value: text}
}

// EmailTarget wraps a single e-mail address.
func EmailTarget(address string) ScanTarget {
	return ScanTarget{kind: TargetEmail, value: address}
}

// Kind reports which variant this target is.
func (t ScanTarget) Kind() TargetKind { return t.kind }

// Value returns the URL, text or e-mail address. Empty for files.
func (t ScanTarget) Value() string { return t.value }

// FileName returns the declared file name. Empty for non-file targets.
func (t ScanTarget) FileName() string { return t.fileName }

// Content returns the file body. Nil for non-file targets.
func (t ScanTarget) Content() io.Reader { return t.content }

// MIMEType returns the declared MIME type, defaulting to octet-stream.
func (t ScanTarget) MIMEType() string {
	if t.mimeType == "" {
		return DefaultMIMEType
	}
	return t.mimeType
}

// Subject is the human-readable name used in user-facing messages.
func (t ScanTarget) Subject() string {
	if t.kind == TargetFile {
		return t.fileName
	}
	return t.value
}

// AnalysisJob is one outstanding remote analysis. It lives only for the
// duration of a single scan call and is never persisted.
type AnalysisJob struct {
	ID          string
	Target      ScanTarget
	SubmittedAt time.Time
}
