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
	"github.com/keeldb/keel/pkg/common/kerr"
	"github.com/keeldb/keel/pkg/container/types"
)

// Encoding selects the physical row representation. It is fixed once per
// operator instance; rows of different encodings never mix within one
// join.
type Encoding uint8

const (
	Generic Encoding = iota
	Packed
)

func (e Encoding) String() string {
	if e == Packed {
		return "packed"
	}
	return "generic"
}

// Row is an ordered, fixed-arity sequence of typed field values.
type Row interface {
	Len() int
	ValueAt(i int) types.TupleElement
	IsNullAt(i int) bool
}

// GenericRow boxes every field. It is the correctness-first fallback for
// schemas the packed codec cannot represent.
type GenericRow []types.TupleElement

func NewGenericRow(fields ...types.TupleElement) GenericRow {
	return GenericRow(fields)
}

func (r GenericRow) Len() int {
	return len(r)
}

func (r GenericRow) ValueAt(i int) types.TupleElement {
	return r[i]
}

func (r GenericRow) IsNullAt(i int) bool {
	return r[i] == nil
}

// PackedRow stores its fields in one packed buffer. The buffer is the
// source of truth: equality and hashing operate on the bytes, and two
// packed rows concatenate by appending buffers. Field access decodes the
// buffer once and caches the boxed view.
//
// The buffer must have been produced by types.Packer over exactly arity
// elements; PackedRow never validates it per access.
type PackedRow struct {
	data  []byte
	arity int
	tup   types.Tuple
}

func NewPackedRow(data []byte, arity int) *PackedRow {
	return &PackedRow{data: data, arity: arity}
}

// PackRow packs a boxed field sequence. It fails when a field's dynamic
// type falls outside the packed codec, which the encoding eligibility
// check rules out up front.
func PackRow(p *types.Packer, fields ...types.TupleElement) (*PackedRow, error) {
	p.Reset()
	for _, f := range fields {
		if err := p.EncodeTupleElement(f); err != nil {
			return nil, err
		}
	}
	return NewPackedRow(p.Bytes(), len(fields)), nil
}

// Data returns the packed buffer. Callers must not mutate it.
func (r *PackedRow) Data() []byte {
	return r.data
}

func (r *PackedRow) Len() int {
	return r.arity
}

func (r *PackedRow) materialize() types.Tuple {
	if r.tup == nil {
		tup, err := types.Unpack(r.data)
		if err != nil {
			// the engine only ever wraps buffers it packed itself
			panic(kerr.NewInternal("corrupt packed row: %s", err))
		}
		r.tup = tup
	}
	return r.tup
}

func (r *PackedRow) ValueAt(i int) types.TupleElement {
	return r.materialize()[i]
}

func (r *PackedRow) IsNullAt(i int) bool {
	return r.materialize()[i] == nil
}

// EstimateSize reports the bytes a row pins while the hashed relation
// owns it. Used for mpool accounting during the build phase.
func EstimateSize(r Row) int64 {
	switch r := r.(type) {
	case *PackedRow:
		return int64(len(r.data))
	case GenericRow:
		size := int64(0)
		for i := range r {
			switch v := r[i].(type) {
			case nil, bool, int8, uint8:
				size += 1
			case int16, uint16:
				size += 2
			case int32, uint32, float32:
				size += 4
			case int64, uint64, float64:
				size += 8
			case []byte:
				size += int64(len(v)) + 24
			case string:
				size += int64(len(v)) + 16
			default:
				size += 24
			}
		}
		return size
	default:
		return 24
	}
}
