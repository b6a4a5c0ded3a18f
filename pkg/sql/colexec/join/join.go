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

	"go.uber.org/zap"

	"github.com/keeldb/keel/pkg/common/hashmap"
	"github.com/keeldb/keel/pkg/common/kerr"
	"github.com/keeldb/keel/pkg/container/row"
	"github.com/keeldb/keel/pkg/container/types"
	"github.com/keeldb/keel/pkg/logutil"
	"github.com/keeldb/keel/pkg/sql/colexec"
)

const opName = "join"

func (innerJoin *InnerJoin) String(buf *bytes.Buffer) {
	buf.WriteString(opName)
	buf.WriteString(": inner join ")
	buf.WriteString(innerJoin.Side.String())
}

// Prepare resolves the build side, fixes the row encoding and compiles
// the key extractors. Configuration errors surface here, before any row
// flows.
func (innerJoin *InnerJoin) Prepare(proc *colexec.Process) error {
	if innerJoin.prepared {
		return nil
	}
	ctr := &innerJoin.ctr

	if innerJoin.Left == nil || innerJoin.Right == nil {
		return kerr.NewBadConfig("join requires two children")
	}
	if len(innerJoin.LeftKeys) == 0 || len(innerJoin.LeftKeys) != len(innerJoin.RightKeys) {
		return kerr.NewBadConfig("join key arity mismatch: %d left, %d right",
			len(innerJoin.LeftKeys), len(innerJoin.RightKeys))
	}

	var buildKeys, streamKeys []colexec.Evaluator
	if innerJoin.Side == BuildLeft {
		ctr.buildSrc, ctr.streamSrc = innerJoin.Left, innerJoin.Right
		buildKeys, streamKeys = innerJoin.LeftKeys, innerJoin.RightKeys
		ctr.buildOnLeft = true
	} else {
		ctr.buildSrc, ctr.streamSrc = innerJoin.Right, innerJoin.Left
		buildKeys, streamKeys = innerJoin.RightKeys, innerJoin.LeftKeys
		ctr.buildOnLeft = false
	}

	if innerJoin.Result == nil {
		innerJoin.Result = defaultResult(len(innerJoin.LeftTypes), len(innerJoin.RightTypes), ctr.buildOnLeft)
	}
	outSchema := make([]types.Type, 0, len(innerJoin.Result))
	for _, rp := range innerJoin.Result {
		side := innerJoin.LeftTypes
		if (rp.Rel == 1) != ctr.buildOnLeft {
			side = innerJoin.RightTypes
		}
		if int(rp.Pos) < 0 || int(rp.Pos) >= len(side) {
			return kerr.NewBadConfig("result position %d out of range for rel %d", rp.Pos, rp.Rel)
		}
		outSchema = append(outSchema, side[rp.Pos])
	}

	allKeys := append(append([]colexec.Evaluator{}, buildKeys...), streamKeys...)
	ctr.encoding = selectEncoding(allKeys, outSchema, innerJoin.PackedEnabled)

	ctr.packer = types.NewPacker()
	var err error
	if ctr.extractBuild, err = makeExtractor(buildKeys, ctr.encoding, types.NewPacker()); err != nil {
		return err
	}
	if ctr.extractStream, err = makeExtractor(streamKeys, ctr.encoding, types.NewPacker()); err != nil {
		return err
	}

	ctr.state = Build
	innerJoin.prepared = true
	return nil
}

// defaultResult is the full left-then-right concatenation expressed in
// stream/build relative positions.
func defaultResult(leftWidth, rightWidth int, buildOnLeft bool) []colexec.ResultPos {
	result := make([]colexec.ResultPos, 0, leftWidth+rightWidth)
	leftRel, rightRel := int32(0), int32(1)
	if buildOnLeft {
		leftRel, rightRel = 1, 0
	}
	for i := 0; i < leftWidth; i++ {
		result = append(result, colexec.NewResultPos(leftRel, int32(i)))
	}
	for i := 0; i < rightWidth; i++ {
		result = append(result, colexec.NewResultPos(rightRel, int32(i)))
	}
	return result
}

// Next produces the next joined row, or nil once the join is exhausted.
// The first call drains the entire build side before any output. The
// returned row is an independent copy; callers may retain it across
// calls.
func (innerJoin *InnerJoin) Next(proc *colexec.Process) (row.Row, error) {
	if !innerJoin.prepared {
		if err := innerJoin.Prepare(proc); err != nil {
			return nil, err
		}
	}
	ctr := &innerJoin.ctr
	if ctr.staged != nil {
		r := ctr.staged
		ctr.staged = nil
		return r, nil
	}
	for {
		switch ctr.state {
		case Build:
			if err := innerJoin.build(proc); err != nil {
				return nil, err
			}
			if ctr.mp.GroupCount() == 0 {
				// empty build side, no stream row can match
				ctr.state = End
			} else {
				ctr.state = Probe
			}
		case Probe:
			return innerJoin.probe(proc)
		case End:
			return nil, nil
		default:
			return nil, kerr.NewInternal("inner join hanging")
		}
	}
}

// HasNext reports whether another joined row exists, fetching and
// staging it as a side effect. Safe to call repeatedly; the staged row
// is handed out by the following Next.
func (innerJoin *InnerJoin) HasNext(proc *colexec.Process) (bool, error) {
	if innerJoin.ctr.staged != nil {
		return true, nil
	}
	r, err := innerJoin.Next(proc)
	if err != nil {
		return false, err
	}
	if r == nil {
		return false, nil
	}
	innerJoin.ctr.staged = r
	return true, nil
}

// build drains the build side into the hash table. Build rows with
// null-containing keys are stored too; probe-side filtering guarantees
// they are never retrieved.
func (innerJoin *InnerJoin) build(proc *colexec.Process) error {
	ctr := &innerJoin.ctr
	ctr.mp = hashmap.NewJoinMap(proc.Mp())
	for {
		r, err := ctr.buildSrc.Next(proc.Ctx)
		if err != nil {
			return err
		}
		if r == nil {
			break
		}
		if ctr.encoding == row.Packed {
			if r, err = ctr.repack(r); err != nil {
				return err
			}
		}
		key, _, err := ctr.extractBuild(r)
		if err != nil {
			return err
		}
		nb := row.EstimateSize(r)
		if mp := proc.Mp(); mp != nil {
			if err := mp.Reserve(nb); err != nil {
				return err
			}
			ctr.buildBytes += nb
		}
		sel := int32(len(ctr.buildRows))
		ctr.buildRows = append(ctr.buildRows, r)
		if err := ctr.mp.Insert(key, sel); err != nil {
			return err
		}
	}
	ctr.mp.Seal()
	logutil.Debug("inner join build done",
		zap.Uint64("groups", ctr.mp.GroupCount()),
		zap.Int64("rows", ctr.mp.RowCount()),
		zap.Int64("hashmapBytes", ctr.mp.Size()),
		zap.Int64("rowBytes", ctr.buildBytes),
		zap.String("encoding", ctr.encoding.String()))
	return nil
}

// repack normalizes a build row to the packed representation so the
// stored relation is uniform and joined rows concatenate at the byte
// level.
func (ctr *container) repack(r row.Row) (row.Row, error) {
	if _, ok := r.(*row.PackedRow); ok {
		return r, nil
	}
	fields := make([]types.TupleElement, r.Len())
	for i := range fields {
		fields[i] = r.ValueAt(i)
	}
	return row.PackRow(ctr.packer, fields...)
}

// probe advances the cursor: emit the next match of the current stream
// row, or scan forward for the next stream row with a non-empty bucket.
// Stream rows whose key contains a null never match and are skipped
// before lookup.
func (innerJoin *InnerJoin) probe(proc *colexec.Process) (row.Row, error) {
	ctr := &innerJoin.ctr
	for {
		if ctr.streamRow != nil && ctr.selIdx < len(ctr.sels) {
			buildRow := ctr.buildRows[ctr.sels[ctr.selIdx]]
			ctr.selIdx++
			out, err := innerJoin.emit(ctr.streamRow, buildRow)
			if err != nil {
				return nil, err
			}
			if ctr.selIdx >= len(ctr.sels) {
				ctr.streamRow = nil
				ctr.sels = nil
				ctr.selIdx = 0
			}
			return out, nil
		}
		r, err := ctr.streamSrc.Next(proc.Ctx)
		if err != nil {
			return nil, err
		}
		if r == nil {
			ctr.state = End
			return nil, nil
		}
		key, hasNull, err := ctr.extractStream(r)
		if err != nil {
			return nil, err
		}
		if hasNull {
			continue
		}
		sels := ctr.mp.Find(key)
		if len(sels) == 0 {
			continue
		}
		ctr.streamRow = r
		ctr.sels = sels
		ctr.selIdx = 0
	}
}

// emit assembles one output row from the current stream and build rows
// according to the result projection, in the active encoding.
func (innerJoin *InnerJoin) emit(streamRow, buildRow row.Row) (row.Row, error) {
	ctr := &innerJoin.ctr
	if ctr.encoding == row.Packed {
		return ctr.emitPacked(innerJoin.Result, streamRow, buildRow)
	}
	out := make(row.GenericRow, len(innerJoin.Result))
	for i, rp := range innerJoin.Result {
		src := streamRow
		if rp.Rel == 1 {
			src = buildRow
		}
		out[i] = src.ValueAt(int(rp.Pos))
	}
	return out, nil
}

func (ctr *container) emitPacked(result []colexec.ResultPos, streamRow, buildRow row.Row) (row.Row, error) {
	// full concatenation of two packed rows is a byte-level append;
	// anything else reassembles through the packer
	sp, sok := streamRow.(*row.PackedRow)
	bp, bok := buildRow.(*row.PackedRow)
	if sok && bok && isConcat(result, streamRow.Len(), buildRow.Len(), ctr.buildOnLeft) {
		first, second := sp, bp
		if ctr.buildOnLeft {
			first, second = bp, sp
		}
		ctr.scratch = append(ctr.scratch[:0], first.Data()...)
		ctr.scratch = append(ctr.scratch, second.Data()...)
		data := make([]byte, len(ctr.scratch))
		copy(data, ctr.scratch)
		return row.NewPackedRow(data, streamRow.Len()+buildRow.Len()), nil
	}
	ctr.packer.Reset()
	for _, rp := range result {
		src := streamRow
		if rp.Rel == 1 {
			src = buildRow
		}
		v := src.ValueAt(int(rp.Pos))
		if v == nil {
			ctr.packer.EncodeNull()
			continue
		}
		if err := ctr.packer.EncodeTupleElement(v); err != nil {
			return nil, err
		}
	}
	return row.NewPackedRow(ctr.packer.Bytes(), len(result)), nil
}

// isConcat reports whether the projection is exactly the default
// left-then-right concatenation.
func isConcat(result []colexec.ResultPos, streamWidth, buildWidth int, buildOnLeft bool) bool {
	if len(result) != streamWidth+buildWidth {
		return false
	}
	firstRel, firstWidth := int32(0), streamWidth
	if buildOnLeft {
		firstRel, firstWidth = 1, buildWidth
	}
	for i, rp := range result {
		wantRel, wantPos := firstRel, int32(i)
		if i >= firstWidth {
			wantRel, wantPos = 1-firstRel, int32(i-firstWidth)
		}
		if rp.Rel != wantRel || rp.Pos != wantPos {
			return false
		}
	}
	return true
}
