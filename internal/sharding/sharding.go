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

// Package sharding assigns records to output shards. Keys are uniformly
// random rather than content-derived: the goal is load distribution across
// parallel writers, not deterministic routing.
package sharding

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// KeyGen produces shard keys in [0, NumShards). Safe for concurrent use.
type KeyGen struct {
	numShards int

	mu  sync.Mutex
	rng *rand.Rand // nil means the shared global source
}

// New creates a generator backed by the global random source.
func New(numShards int) (*KeyGen, error) {
	if numShards <= 0 {
		return nil, fmt.Errorf("num shards must be positive, got %d", numShards)
	}
	return &KeyGen{numShards: numShards}, nil
}

// NewWithSource creates a generator backed by the given source. Tests use a
// seeded source to make distribution assertions deterministic.
func NewWithSource(numShards int, src rand.Source) (*KeyGen, error) {
	kg, err := New(numShards)
	if err != nil {
		return nil, err
	}
	kg.rng = rand.New(src)
	return kg, nil
}

// Next returns the shard key for the next record. Each key is independent of
// all previous keys; no affinity is maintained.
func (kg *KeyGen) Next() int {
	if kg.rng == nil {
		return rand.IntN(kg.numShards)
	}
	kg.mu.Lock()
	defer kg.mu.Unlock()
	return kg.rng.IntN(kg.numShards)
}

// NumShards returns the configured shard count.
func (kg *KeyGen) NumShards() int {
	return kg.numShards
}
