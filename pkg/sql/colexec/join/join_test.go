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

package join

import (
	"bytes"
	"context"
	"testing"

	"github.com/keeldb/keel/pkg/common/kerr"
	"github.com/keeldb/keel/pkg/common/mpool"
	"github.com/keeldb/keel/pkg/container/row"
	"github.com/keeldb/keel/pkg/container/types"
	"github.com/keeldb/keel/pkg/sql/colexec"
	"github.com/stretchr/testify/require"
)

var (
	kvSchema = []types.Type{types.T_int64.ToType(), types.T_varchar.ToType()}
)

func kvRow(k int64, v string) row.Row {
	return row.NewGenericRow(k, v)
}

func kvPackedRow(t *testing.T, k int64, v string) row.Row {
	r, err := row.PackRow(types.NewPacker(), k, v)
	require.NoError(t, err)
	return r
}

func newTestJoin(left, right []row.Row, side BuildSide, packed bool) *InnerJoin {
	return &InnerJoin{
		Left:          colexec.NewRows(left...),
		Right:         colexec.NewRows(right...),
		LeftTypes:     kvSchema,
		RightTypes:    kvSchema,
		LeftKeys:      colexec.MustColExprs(kvSchema, 0),
		RightKeys:     colexec.MustColExprs(kvSchema, 0),
		Side:          side,
		PackedEnabled: packed,
	}
}

func drainAll(t *testing.T, j *InnerJoin) []row.Row {
	proc := colexec.NewProcess(context.Background(), mpool.MustNewZero())
	out, err := drainJoin(proc, j)
	require.NoError(t, err)
	j.Free(proc)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
	return out
}

func fields(r row.Row) []types.TupleElement {
	out := make([]types.TupleElement, r.Len())
	for i := range out {
		out[i] = r.ValueAt(i)
	}
	return out
}

// logical normalizes a row to comparable values; the packed codec
// decodes varchar fields as []byte.
func logical(r row.Row) []types.TupleElement {
	out := fields(r)
	for i, v := range out {
		if b, ok := v.([]byte); ok {
			out[i] = string(b)
		}
	}
	return out
}

func TestBucketFanOut(t *testing.T) {
	build := []row.Row{kvRow(1, "a"), kvRow(1, "b"), kvRow(2, "c")}
	stream := []row.Row{kvRow(1, "x")}

	out := drainAll(t, newTestJoin(stream, build, BuildRight, false))
	require.Len(t, out, 2)
	require.Equal(t, []types.TupleElement{int64(1), "x", int64(1), "a"}, fields(out[0]))
	require.Equal(t, []types.TupleElement{int64(1), "x", int64(1), "b"}, fields(out[1]))
}

func TestOutputOrdering(t *testing.T) {
	build := []row.Row{kvRow(2, "b1"), kvRow(1, "a1"), kvRow(1, "a2")}
	stream := []row.Row{kvRow(1, "x"), kvRow(3, "dead"), kvRow(2, "y"), kvRow(1, "z")}

	out := drainAll(t, newTestJoin(stream, build, BuildRight, false))
	var got []string
	for _, r := range out {
		got = append(got, r.ValueAt(1).(string)+"/"+r.ValueAt(3).(string))
	}
	// stream encounter order, then bucket insertion order
	require.Equal(t, []string{"x/a1", "x/a2", "y/b1", "z/a1", "z/a2"}, got)
}

func TestNullKeyExclusion(t *testing.T) {
	build := []row.Row{
		row.NewGenericRow(nil, "null-build"),
		kvRow(1, "a"),
	}
	stream := []row.Row{
		row.NewGenericRow(nil, "null-stream"),
		kvRow(1, "x"),
	}

	out := drainAll(t, newTestJoin(stream, build, BuildRight, false))
	require.Len(t, out, 1)
	require.Equal(t, "x", out[0].ValueAt(1))
	require.Equal(t, "a", out[0].ValueAt(3))
}

func TestAllNullKeysNeverMatch(t *testing.T) {
	build := []row.Row{row.NewGenericRow(nil, "b")}
	stream := []row.Row{row.NewGenericRow(nil, "s")}
	out := drainAll(t, newTestJoin(stream, build, BuildRight, false))
	require.Empty(t, out)
}

func TestEmptyInputs(t *testing.T) {
	build := []row.Row{kvRow(1, "a")}
	stream := []row.Row{kvRow(1, "x")}

	out := drainAll(t, newTestJoin(nil, build, BuildRight, false))
	require.Empty(t, out)

	out = drainAll(t, newTestJoin(stream, nil, BuildRight, false))
	require.Empty(t, out)
}

func TestHasNextIdempotent(t *testing.T) {
	build := []row.Row{kvRow(1, "a"), kvRow(1, "b")}
	stream := []row.Row{kvRow(1, "x")}
	j := newTestJoin(stream, build, BuildRight, false)
	proc := colexec.NewProcess(context.Background(), mpool.MustNewZero())
	require.NoError(t, j.Prepare(proc))

	for i := 0; i < 5; i++ {
		ok, err := j.HasNext(proc)
		require.NoError(t, err)
		require.True(t, ok)
	}
	r1, err := j.Next(proc)
	require.NoError(t, err)
	require.Equal(t, "a", r1.ValueAt(3))

	r2, err := j.Next(proc)
	require.NoError(t, err)
	require.Equal(t, "b", r2.ValueAt(3))

	ok, err := j.HasNext(proc)
	require.NoError(t, err)
	require.False(t, ok)

	r3, err := j.Next(proc)
	require.NoError(t, err)
	require.Nil(t, r3)
	j.Free(proc)
}

func TestBuildSideSymmetry(t *testing.T) {
	left := []row.Row{kvRow(1, "l1"), kvRow(2, "l2"), kvRow(1, "l3")}
	right := []row.Row{kvRow(1, "r1"), kvRow(1, "r2"), kvRow(3, "r3")}

	outRight := drainAll(t, newTestJoin(left, right, BuildRight, false))
	outLeft := drainAll(t, newTestJoin(left, right, BuildLeft, false))

	toPairs := func(rows []row.Row) map[string]int {
		pairs := make(map[string]int)
		for _, r := range rows {
			// column order is left-then-right under either designation
			pairs[r.ValueAt(1).(string)+"|"+r.ValueAt(3).(string)]++
		}
		return pairs
	}
	require.Equal(t, toPairs(outRight), toPairs(outLeft))
	require.Len(t, outRight, 4)
}

func TestEncodingEquivalence(t *testing.T) {
	buildG := []row.Row{kvRow(1, "a"), kvRow(1, "b"), kvRow(2, "c")}
	streamG := []row.Row{kvRow(1, "x"), kvRow(2, "y")}
	buildP := []row.Row{kvPackedRow(t, 1, "a"), kvPackedRow(t, 1, "b"), kvPackedRow(t, 2, "c")}
	streamP := []row.Row{kvPackedRow(t, 1, "x"), kvPackedRow(t, 2, "y")}

	outG := drainAll(t, newTestJoin(streamG, buildG, BuildRight, false))
	outP := drainAll(t, newTestJoin(streamP, buildP, BuildRight, true))

	require.Equal(t, len(outG), len(outP))
	for i := range outG {
		require.IsType(t, row.GenericRow{}, outG[i])
		require.IsType(t, &row.PackedRow{}, outP[i])
		require.Equal(t, logical(outG[i]), logical(outP[i]))
	}
}

func TestPackedOutputIsConcat(t *testing.T) {
	b := kvPackedRow(t, 7, "b").(*row.PackedRow)
	s := kvPackedRow(t, 7, "s").(*row.PackedRow)

	out := drainAll(t, newTestJoin([]row.Row{s}, []row.Row{b}, BuildRight, true))
	require.Len(t, out, 1)
	pr, ok := out[0].(*row.PackedRow)
	require.True(t, ok)
	want := append(append([]byte{}, s.Data()...), b.Data()...)
	require.Equal(t, want, pr.Data())
	require.Equal(t, 4, pr.Len())
}

func TestGenericRowsRepackedForBuild(t *testing.T) {
	// generic inputs with a packable schema still take the packed path
	build := []row.Row{kvRow(1, "a")}
	stream := []row.Row{kvRow(1, "x")}
	out := drainAll(t, newTestJoin(stream, build, BuildRight, true))
	require.Len(t, out, 1)
	require.IsType(t, &row.PackedRow{}, out[0])
	require.Equal(t, []types.TupleElement{int64(1), "x", int64(1), "a"}, logical(out[0]))
}

func TestUnpackableSchemaFallsBackToGeneric(t *testing.T) {
	schema := []types.Type{types.T_int64.ToType(), types.T_json.ToType()}
	j := &InnerJoin{
		Left:          colexec.NewRows(row.NewGenericRow(int64(1), []byte(`{"k":1}`))),
		Right:         colexec.NewRows(row.NewGenericRow(int64(1), []byte(`{"k":2}`))),
		LeftTypes:     schema,
		RightTypes:    schema,
		LeftKeys:      colexec.MustColExprs(schema, 0),
		RightKeys:     colexec.MustColExprs(schema, 0),
		Side:          BuildRight,
		PackedEnabled: true,
	}
	out := drainAll(t, j)
	require.Len(t, out, 1)
	require.IsType(t, row.GenericRow{}, out[0])
	require.Equal(t, row.Generic, j.ctr.encoding)
}

func TestResultProjection(t *testing.T) {
	build := []row.Row{kvRow(1, "a")}
	stream := []row.Row{kvRow(1, "x")}
	j := newTestJoin(stream, build, BuildRight, false)
	// build-side value column, then stream-side key column
	j.Result = []colexec.ResultPos{
		colexec.NewResultPos(1, 1),
		colexec.NewResultPos(0, 0),
	}
	out := drainAll(t, j)
	require.Len(t, out, 1)
	require.Equal(t, []types.TupleElement{"a", int64(1)}, fields(out[0]))
}

func TestResultProjectionPacked(t *testing.T) {
	build := []row.Row{kvPackedRow(t, 1, "a")}
	stream := []row.Row{kvPackedRow(t, 1, "x")}
	j := newTestJoin(stream, build, BuildRight, true)
	j.Result = []colexec.ResultPos{colexec.NewResultPos(1, 1)}
	out := drainAll(t, j)
	require.Len(t, out, 1)
	require.IsType(t, &row.PackedRow{}, out[0])
	require.Equal(t, []types.TupleElement{"a"}, logical(out[0]))
}

func TestPrepareErrors(t *testing.T) {
	j := newTestJoin(nil, nil, BuildRight, false)
	j.Right = nil
	err := j.Prepare(colexec.NewProcess(context.Background(), nil))
	require.True(t, kerr.IsCode(err, kerr.ErrBadConfig))

	j = newTestJoin(nil, nil, BuildRight, false)
	j.RightKeys = colexec.MustColExprs(kvSchema, 0, 1)
	err = j.Prepare(colexec.NewProcess(context.Background(), nil))
	require.True(t, kerr.IsCode(err, kerr.ErrBadConfig))

	j = newTestJoin(nil, nil, BuildRight, false)
	j.Result = []colexec.ResultPos{colexec.NewResultPos(0, 9)}
	err = j.Prepare(colexec.NewProcess(context.Background(), nil))
	require.True(t, kerr.IsCode(err, kerr.ErrBadConfig))
}

func TestBuildOOMAborts(t *testing.T) {
	var build []row.Row
	for i := 0; i < 1000; i++ {
		build = append(build, kvRow(int64(i), "some build payload that takes space"))
	}
	j := newTestJoin([]row.Row{kvRow(1, "x")}, build, BuildRight, false)
	proc := colexec.NewProcess(context.Background(), mpool.MustNewWithCap(1<<10))

	_, err := drainJoin(proc, j)
	require.True(t, kerr.IsCode(err, kerr.ErrOOM))
	j.Free(proc)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestString(t *testing.T) {
	var buf bytes.Buffer
	j := newTestJoin(nil, nil, BuildLeft, false)
	j.String(&buf)
	require.Contains(t, buf.String(), "inner join")
	require.Contains(t, buf.String(), "build-left")
}
