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

package mpool

import (
	"sync/atomic"

	"github.com/keeldb/keel/pkg/common/kerr"
)

// MPool tracks memory reservations against a byte cap. Rows are managed
// by the Go runtime, so the pool accounts rather than allocates: callers
// reserve bytes before materializing build-side state and release them
// when the state is freed. A cap of 0 means unlimited.
type MPool struct {
	name string
	cap  int64

	stats Stats
}

type Stats struct {
	NumCurrBytes  atomic.Int64
	HighWaterMark atomic.Int64
	NumReserve    atomic.Int64
	NumRelease    atomic.Int64
}

func NewMPool(name string, capacity int64) (*MPool, error) {
	if capacity < 0 {
		return nil, kerr.NewInvalidInput("mpool cap %d", capacity)
	}
	return &MPool{name: name, cap: capacity}, nil
}

// MustNewZero returns an unlimited pool. Test code mostly.
func MustNewZero() *MPool {
	m, err := NewMPool("default", 0)
	if err != nil {
		panic(err)
	}
	return m
}

func MustNewWithCap(capacity int64) *MPool {
	m, err := NewMPool("default", capacity)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *MPool) Name() string {
	return m.name
}

func (m *MPool) Cap() int64 {
	return m.cap
}

func (m *MPool) Stats() *Stats {
	return &m.stats
}

func (m *MPool) CurrNB() int64 {
	return m.stats.NumCurrBytes.Load()
}

// Reserve accounts nb bytes against the pool. It fails with an OOM error
// when the reservation would exceed the cap; the reservation is rolled
// back in that case.
func (m *MPool) Reserve(nb int64) error {
	if nb < 0 {
		return kerr.NewInvalidInput("reserve %d bytes", nb)
	}
	curr := m.stats.NumCurrBytes.Add(nb)
	if m.cap != 0 && curr > m.cap {
		m.stats.NumCurrBytes.Add(-nb)
		return kerr.NewOOM()
	}
	m.stats.NumReserve.Add(1)
	for {
		hwm := m.stats.HighWaterMark.Load()
		if curr <= hwm || m.stats.HighWaterMark.CompareAndSwap(hwm, curr) {
			return nil
		}
	}
}

// Release returns nb previously reserved bytes to the pool.
func (m *MPool) Release(nb int64) {
	if nb < 0 {
		panic(kerr.NewInvalidInput("release %d bytes", nb))
	}
	if m.stats.NumCurrBytes.Add(-nb) < 0 {
		panic(kerr.NewInvalidState("mpool %s released more than reserved", m.name))
	}
	m.stats.NumRelease.Add(1)
}
