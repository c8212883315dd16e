// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package windowing

import (
	"sync"
	"time"
)

// Trigger tracks a watermark and answers whether a window may be closed.
// A window is closed once the watermark has passed its end plus the allowed
// lateness slack. The watermark only moves forward.
type Trigger struct {
	mu              sync.Mutex
	watermarkMs     int64
	allowedLateness time.Duration
}

// NewTrigger creates a trigger with the given lateness slack. Zero slack
// closes a window as soon as the watermark reaches its end.
func NewTrigger(allowedLateness time.Duration) *Trigger {
	return &Trigger{allowedLateness: allowedLateness}
}

// Advance moves the watermark to t if t is later than the current watermark.
func (tr *Trigger) Advance(t time.Time) {
	ms := t.UnixMilli()
	tr.mu.Lock()
	if ms > tr.watermarkMs {
		tr.watermarkMs = ms
	}
	tr.mu.Unlock()
}

// Watermark returns the current watermark in UTC.
func (tr *Trigger) Watermark() time.Time {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return time.UnixMilli(tr.watermarkMs).UTC()
}

// IsClosed reports whether the watermark has passed the window end plus the
// allowed lateness.
func (tr *Trigger) IsClosed(w Window) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.watermarkMs >= w.EndMs+tr.allowedLateness.Milliseconds()
}
