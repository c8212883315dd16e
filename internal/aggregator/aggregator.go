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

// Package aggregator groups decoded records by (window, shard) into ordered
// in-memory batches. A batch holds every record of one window/shard pair, so
// live memory is bounded by open windows × shard count; operators size the
// window interval and shard count against that.
package aggregator

import (
	"sync"

	"github.com/cardinalhq/pubsink/internal/windowing"
)

// Batch is the materialized set of records for one (window, shard) pair.
// Records keep insertion order; that order is preserved into the encoded
// output. A batch is owned by the aggregator until flushed, then by the
// caller; it is never written twice by this process.
type Batch struct {
	Window  windowing.Window
	Shard   int
	Records []string
}

// key identifies a live batch. Window end is implied by start for a fixed
// window size.
type key struct {
	startMs int64
	shard   int
}

// Aggregator collects records into batches and releases those whose window
// the trigger reports closed. Safe for concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	batches map[key]*Batch
	trigger *windowing.Trigger

	stats Stats
}

// Stats holds aggregation statistics.
type Stats struct {
	RecordsAdded   int64
	BatchesFlushed int64
	OpenBatches    int64
}

// New creates an aggregator that consults trigger when flushing.
func New(trigger *windowing.Trigger) *Aggregator {
	return &Aggregator{
		batches: make(map[key]*Batch),
		trigger: trigger,
	}
}

// Add appends a record body to the batch for (w, shard), creating the batch
// on first use.
func (a *Aggregator) Add(w windowing.Window, shard int, body string) {
	k := key{startMs: w.StartMs, shard: shard}

	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.batches[k]
	if !ok {
		b = &Batch{Window: w, Shard: shard}
		a.batches[k] = b
	}
	b.Records = append(b.Records, body)
	a.stats.RecordsAdded++
}

// FlushClosed removes and returns every batch whose window the trigger
// reports closed. Returned batches are no longer tracked; the caller owns
// them.
func (a *Aggregator) FlushClosed() []*Batch {
	a.mu.Lock()
	defer a.mu.Unlock()

	var closed []*Batch
	for k, b := range a.batches {
		if a.trigger.IsClosed(b.Window) {
			closed = append(closed, b)
			delete(a.batches, k)
		}
	}
	a.stats.BatchesFlushed += int64(len(closed))
	return closed
}

// FlushAll removes and returns every live batch regardless of window state.
// Used during shutdown so open windows are not silently dropped.
func (a *Aggregator) FlushAll() []*Batch {
	a.mu.Lock()
	defer a.mu.Unlock()

	all := make([]*Batch, 0, len(a.batches))
	for _, b := range a.batches {
		all = append(all, b)
	}
	a.batches = make(map[key]*Batch)
	a.stats.BatchesFlushed += int64(len(all))
	return all
}

// OpenCount returns the number of live batches.
func (a *Aggregator) OpenCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.batches)
}

// Stats returns current statistics.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stats
	s.OpenBatches = int64(len(a.batches))
	return s
}
