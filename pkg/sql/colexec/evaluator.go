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

package colexec

import (
	"github.com/keeldb/keel/pkg/common/kerr"
	"github.com/keeldb/keel/pkg/container/row"
	"github.com/keeldb/keel/pkg/container/types"
)

// ColExpr evaluates to the field at a fixed column ordinal. It is the
// standard key expression of the join operator.
type ColExpr struct {
	pos int
	typ types.Type
}

// NewColExpr builds a column reference, validating the ordinal against
// the input schema up front so evaluation never fails per row.
func NewColExpr(pos int, schema []types.Type) (*ColExpr, error) {
	if pos < 0 || pos >= len(schema) {
		return nil, kerr.NewInvalidInput("column ordinal %d out of range, schema has %d columns", pos, len(schema))
	}
	return &ColExpr{pos: pos, typ: schema[pos]}, nil
}

func (e *ColExpr) Eval(r row.Row) (types.TupleElement, error) {
	if e.pos >= r.Len() {
		return nil, kerr.NewInvalidInput("column ordinal %d out of range, row has %d fields", e.pos, r.Len())
	}
	return r.ValueAt(e.pos), nil
}

func (e *ColExpr) Typ() types.Type {
	return e.typ
}

func (e *ColExpr) Pos() int {
	return e.pos
}

// MustColExprs builds one column reference per ordinal. Test and tool
// code mostly; panics on a bad ordinal.
func MustColExprs(schema []types.Type, ordinals ...int) []Evaluator {
	evals := make([]Evaluator, len(ordinals))
	for i, pos := range ordinals {
		e, err := NewColExpr(pos, schema)
		if err != nil {
			panic(err)
		}
		evals[i] = e
	}
	return evals
}
