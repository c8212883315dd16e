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

// Package windowing assigns event timestamps to fixed, non-overlapping time
// windows and decides when a window is safe to close.
package windowing

import (
	"fmt"
	"time"
)

// Window is a half-open interval [Start, End) aligned to the Unix epoch.
type Window struct {
	StartMs int64
	EndMs   int64
}

// Start returns the window start in UTC.
func (w Window) Start() time.Time {
	return time.UnixMilli(w.StartMs).UTC()
}

// End returns the window end in UTC.
func (w Window) End() time.Time {
	return time.UnixMilli(w.EndMs).UTC()
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return time.Duration(w.EndMs-w.StartMs) * time.Millisecond
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	ms := t.UnixMilli()
	return ms >= w.StartMs && ms < w.EndMs
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start().Format(time.RFC3339), w.End().Format(time.RFC3339))
}

// Assigner maps event timestamps to fixed windows. It is stateless: the
// window for a timestamp depends only on the timestamp and the configured
// size, so late or early records land in their natural window.
type Assigner struct {
	sizeMs int64
}

// NewAssigner creates an assigner with the given window size.
func NewAssigner(size time.Duration) (*Assigner, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %s", size)
	}
	return &Assigner{sizeMs: size.Milliseconds()}, nil
}

// Assign returns the window containing t. Windows tile the timeline: every
// timestamp belongs to exactly one window.
func (a *Assigner) Assign(t time.Time) Window {
	ms := t.UnixMilli()
	start := ms - floorMod(ms, a.sizeMs)
	return Window{StartMs: start, EndMs: start + a.sizeMs}
}

// Size returns the configured window size.
func (a *Assigner) Size() time.Duration {
	return time.Duration(a.sizeMs) * time.Millisecond
}

// floorMod returns the mathematical modulus, non-negative even for
// pre-epoch timestamps.
func floorMod(x, m int64) int64 {
	r := x % m
	if r < 0 {
		r += m
	}
	return r
}
