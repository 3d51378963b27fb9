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

import "github.com/phishnchips/scamscan/internal/models"

// Observer receives progress from a scan. Every field is optional; the scanner
// only writes to these sinks and never reads anything back.
type Observer struct {
	OnMessage   func(msg string)
	OnHasResult func(has bool)
	OnLoading   func(loading bool)
	OnEvent     func(ev models.ScanEvent)
}

func (o Observer) message(msg string) {
	if o.OnMessage != nil {
		o.OnMessage(msg)
	}
}

func (o Observer) hasResult(has bool) {
	if o.OnHasResult != nil {
		o.OnHasResult(has)
	}
}

func (o Observer) loading(loading bool) {
	if o.OnLoading != nil {
		o.OnLoading(loading)
	}
}

func (o Observer) event(ev models.ScanEvent) {
	if o.OnEvent != nil {
		o.OnEvent(ev)
	}
}
