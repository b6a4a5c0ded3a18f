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
	"fmt"
	"testing"

	"github.com/keeldb/keel/pkg/common/kerr"
	"github.com/keeldb/keel/pkg/common/mpool"
	"github.com/stretchr/testify/require"
)

func TestJoinMapInsertFind(t *testing.T) {
	m := mpool.MustNewZero()
	jm := NewJoinMap(m)

	require.NoError(t, jm.Insert([]byte("k1"), 0))
	require.NoError(t, jm.Insert([]byte("k1"), 1))
	require.NoError(t, jm.Insert([]byte("k2"), 2))
	jm.Seal()

	require.Equal(t, []int32{0, 1}, jm.Find([]byte("k1")))
	require.Equal(t, []int32{2}, jm.Find([]byte("k2")))
	require.Nil(t, jm.Find([]byte("k3")))
	require.Equal(t, uint64(2), jm.GroupCount())
	require.Equal(t, int64(3), jm.RowCount())
	require.Greater(t, jm.Size(), int64(0))

	jm.Free()
	require.Equal(t, int64(0), m.CurrNB())
}

func TestJoinMapInsertionOrder(t *testing.T) {
	jm := NewJoinMap(nil)
	const n = 1000
	for i := 0; i < n; i++ {
		require.NoError(t, jm.Insert([]byte("same"), int32(i)))
	}
	jm.Seal()
	sels := jm.Find([]byte("same"))
	require.Len(t, sels, n)
	for i, sel := range sels {
		require.Equal(t, int32(i), sel)
	}
}

func TestJoinMapManyDistinctKeys(t *testing.T) {
	jm := NewJoinMap(mpool.MustNewZero())
	const n = 10000
	for i := 0; i < n; i++ {
		require.NoError(t, jm.Insert([]byte(fmt.Sprintf("key-%d", i)), int32(i)))
	}
	jm.Seal()
	require.Equal(t, uint64(n), jm.GroupCount())
	for i := 0; i < n; i += 997 {
		require.Equal(t, []int32{int32(i)}, jm.Find([]byte(fmt.Sprintf("key-%d", i))))
	}
}

func TestJoinMapSealed(t *testing.T) {
	jm := NewJoinMap(nil)
	require.NoError(t, jm.Insert([]byte("k"), 0))
	jm.Seal()
	err := jm.Insert([]byte("k"), 1)
	require.True(t, kerr.IsCode(err, kerr.ErrInvalidState))
	require.Equal(t, []int32{0}, jm.Find([]byte("k")))
}

func TestJoinMapOOM(t *testing.T) {
	m := mpool.MustNewWithCap(256)
	jm := NewJoinMap(m)
	var err error
	for i := 0; i < 1000 && err == nil; i++ {
		err = jm.Insert([]byte(fmt.Sprintf("key-%d", i)), int32(i))
	}
	require.True(t, kerr.IsCode(err, kerr.ErrOOM))
	jm.Free()
	require.Equal(t, int64(0), m.CurrNB())
}

func TestJoinMapEmptyKey(t *testing.T) {
	jm := NewJoinMap(nil)
	require.NoError(t, jm.Insert(nil, 7))
	jm.Seal()
	require.Equal(t, []int32{7}, jm.Find(nil))
	require.Equal(t, []int32{7}, jm.Find([]byte{}))
}

func BenchmarkJoinMapInsert(b *testing.B) {
	jm := NewJoinMap(nil)
	key := []byte("benchmark-key-00000000")
	for i := 0; i < b.N; i++ {
		key[len(key)-1] = byte(i)
		_ = jm.Insert(key, int32(i))
	}
}
