// Copyright 2025 Keel DB
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashmap

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
	"github.com/keeldb/keel/pkg/common/kerr"
	"github.com/keeldb/keel/pkg/common/mpool"
)

// rough per-entry bookkeeping cost charged to the pool, beyond key bytes
const (
	groupOverhead = 64
	selSize       = 4
)

// group holds the sels (build row ordinals, in insertion order) of one
// distinct key.
type group struct {
	key  []byte
	sels []int32
}

// JoinMap is a multimap from encoded key bytes to build-side row
// ordinals. Hashing is xxhash64 over the key bytes with chaining per
// hash; the exact key is verified on every lookup, so hash collisions
// only cost an extra compare.
//
// A JoinMap is write-only until Seal and read-only after: the build
// phase inserts, the probe phase finds. One JoinMap serves exactly one
// partition and is never shared across partitions.
type JoinMap struct {
	m *mpool.MPool

	groups map[uint64][]int32 // hash -> ordinals into all
	all    []group
	rows   int64
	size   int64
	sealed bool
}

func NewJoinMap(m *mpool.MPool) *JoinMap {
	return &JoinMap{
		m:      m,
		groups: make(map[uint64][]int32),
	}
}

// Insert appends sel to the bucket for key, creating the bucket when the
// key is new. Keys with null fields are inserted like any other: the
// probe side filters nulls before lookup, so they are stored and never
// retrieved.
func (jm *JoinMap) Insert(key []byte, sel int32) error {
	if jm.sealed {
		return kerr.NewInvalidState("insert into sealed join map")
	}
	h := xxhash.Sum64(key)
	for _, gi := range jm.groups[h] {
		g := &jm.all[gi]
		if bytes.Equal(g.key, key) {
			if err := jm.reserve(selSize); err != nil {
				return err
			}
			g.sels = append(g.sels, sel)
			jm.rows++
			return nil
		}
	}
	if err := jm.reserve(int64(len(key)) + selSize + groupOverhead); err != nil {
		return err
	}
	jm.groups[h] = append(jm.groups[h], int32(len(jm.all)))
	jm.all = append(jm.all, group{
		key:  append([]byte(nil), key...),
		sels: []int32{sel},
	})
	jm.rows++
	return nil
}

func (jm *JoinMap) reserve(nb int64) error {
	if jm.m == nil {
		return nil
	}
	if err := jm.m.Reserve(nb); err != nil {
		return err
	}
	jm.size += nb
	return nil
}

// Seal freezes the map. Construction errors aside, the build phase
// always seals before any Find.
func (jm *JoinMap) Seal() {
	jm.sealed = true
}

// Find returns the sels recorded for key, in insertion order, or nil
// when no build row shares the key. Absence is not an error.
func (jm *JoinMap) Find(key []byte) []int32 {
	h := xxhash.Sum64(key)
	for _, gi := range jm.groups[h] {
		g := &jm.all[gi]
		if bytes.Equal(g.key, key) {
			return g.sels
		}
	}
	return nil
}

// GroupCount returns the number of distinct keys.
func (jm *JoinMap) GroupCount() uint64 {
	return uint64(len(jm.all))
}

// RowCount returns the number of inserted rows.
func (jm *JoinMap) RowCount() int64 {
	return jm.rows
}

// Size returns the bytes this map has reserved from its pool.
func (jm *JoinMap) Size() int64 {
	return jm.size
}

// Free releases the pool reservation and drops the internal state. The
// map must not be used afterwards.
func (jm *JoinMap) Free() {
	if jm.m != nil && jm.size > 0 {
		jm.m.Release(jm.size)
	}
	jm.size = 0
	jm.groups = nil
	jm.all = nil
}
