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
	"context"

	"github.com/keeldb/keel/pkg/common/mpool"
	"github.com/keeldb/keel/pkg/container/row"
	"github.com/keeldb/keel/pkg/container/types"
)

// Evaluator computes one key value from an input row. Evaluators are
// pure: the same row always yields an equal value and the row is never
// mutated.
type Evaluator interface {
	Eval(r row.Row) (types.TupleElement, error)
	Typ() types.Type
}

// ResultPos addresses one output column of a join. Rel 0 is the probe
// side, Rel 1 is the build side; Pos is the column ordinal within that
// side.
type ResultPos struct {
	Rel int32
	Pos int32
}

func NewResultPos(rel int32, pos int32) ResultPos {
	return ResultPos{Rel: rel, Pos: pos}
}

// RowSource is a pull-based row sequence. Next returns a nil row once
// the source is exhausted; every call after that keeps returning nil.
type RowSource interface {
	Next(ctx context.Context) (row.Row, error)
}

// Process carries the per-query execution state operators share: the
// query context and the memory pool build-side state is accounted
// against.
type Process struct {
	Ctx context.Context

	mp *mpool.MPool
}

func NewProcess(ctx context.Context, mp *mpool.MPool) *Process {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Process{Ctx: ctx, mp: mp}
}

func (proc *Process) Mp() *mpool.MPool {
	return proc.mp
}
