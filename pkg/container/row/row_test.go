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

package row

import (
	"testing"

	"github.com/keeldb/keel/pkg/container/types"
	"github.com/stretchr/testify/require"
)

func TestGenericRow(t *testing.T) {
	r := NewGenericRow(int64(7), nil, []byte("ok"))
	require.Equal(t, 3, r.Len())
	require.Equal(t, int64(7), r.ValueAt(0))
	require.True(t, r.IsNullAt(1))
	require.False(t, r.IsNullAt(2))
}

func TestPackedRow(t *testing.T) {
	p := types.NewPacker()
	r, err := PackRow(p, int64(7), nil, []byte("ok"))
	require.NoError(t, err)
	require.Equal(t, 3, r.Len())
	require.Equal(t, int64(7), r.ValueAt(0))
	require.True(t, r.IsNullAt(1))
	require.Equal(t, []byte("ok"), r.ValueAt(2))

	// equal field values pack to equal bytes
	r2, err := PackRow(p, int64(7), nil, []byte("ok"))
	require.NoError(t, err)
	require.Equal(t, r.Data(), r2.Data())
}

func TestPackRowUnsupported(t *testing.T) {
	p := types.NewPacker()
	_, err := PackRow(p, map[string]int{"a": 1})
	require.Error(t, err)
}

func TestPackedRowConcat(t *testing.T) {
	p := types.NewPacker()
	left, err := PackRow(p, int64(1), []byte("l"))
	require.NoError(t, err)
	right, err := PackRow(p, []byte("r"))
	require.NoError(t, err)

	joined := NewPackedRow(append(append([]byte{}, left.Data()...), right.Data()...), left.Len()+right.Len())
	require.Equal(t, 3, joined.Len())
	require.Equal(t, int64(1), joined.ValueAt(0))
	require.Equal(t, []byte("l"), joined.ValueAt(1))
	require.Equal(t, []byte("r"), joined.ValueAt(2))
}

func TestEstimateSize(t *testing.T) {
	p := types.NewPacker()
	pr, err := PackRow(p, int64(1))
	require.NoError(t, err)
	require.Equal(t, int64(len(pr.Data())), EstimateSize(pr))

	gr := NewGenericRow(int64(1), []byte("abcd"))
	require.Equal(t, int64(8+4+24), EstimateSize(gr))
}
