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
	"github.com/keeldb/keel/pkg/common/hashmap"
	"github.com/keeldb/keel/pkg/common/mpool"
	"github.com/keeldb/keel/pkg/container/row"
	"github.com/keeldb/keel/pkg/container/types"
	"github.com/keeldb/keel/pkg/sql/colexec"
)

const (
	Build = iota
	Probe
	End
)

// BuildSide designates which child materializes into the hash table.
// The other child streams through it.
type BuildSide uint8

const (
	BuildRight BuildSide = iota
	BuildLeft
)

func (s BuildSide) String() string {
	if s == BuildLeft {
		return "build-left"
	}
	return "build-right"
}

type container struct {
	state int

	encoding row.Encoding

	// build-side resolution, fixed by Prepare
	buildSrc    colexec.RowSource
	streamSrc   colexec.RowSource
	buildOnLeft bool

	extractBuild  keyExtractor
	extractStream keyExtractor

	packer  *types.Packer
	scratch []byte

	mp         *hashmap.JoinMap
	buildRows  []row.Row
	buildBytes int64

	// probe cursor
	streamRow row.Row
	sels      []int32
	selIdx    int

	// match peeked by HasNext, handed out by the next Next call
	staged row.Row
}

// InnerJoin joins two row sources on equality keys. The build side is
// drained into a hash table on the first Next call; the stream side is
// then probed lazily, one joined row per call.
type InnerJoin struct {
	ctr container

	Left  colexec.RowSource
	Right colexec.RowSource

	LeftTypes  []types.Type
	RightTypes []types.Type

	LeftKeys  []colexec.Evaluator
	RightKeys []colexec.Evaluator

	Side BuildSide

	// Result projects the output columns. Rel 0 addresses the stream
	// side, Rel 1 the build side. When nil, Prepare fills it with the
	// full left-then-right concatenation.
	Result []colexec.ResultPos

	// PackedEnabled gates the packed row path. Even when set, packed
	// encoding is used only if every key and output column type is
	// packable.
	PackedEnabled bool

	prepared bool
}

func (innerJoin *InnerJoin) Free(proc *colexec.Process) {
	ctr := &innerJoin.ctr
	ctr.cleanHashMap()
	ctr.cleanBuildRows(proc.Mp())
	ctr.streamRow = nil
	ctr.sels = nil
	ctr.staged = nil
	ctr.scratch = nil
	ctr.packer = nil
}

func (ctr *container) cleanHashMap() {
	if ctr.mp != nil {
		ctr.mp.Free()
		ctr.mp = nil
	}
}

func (ctr *container) cleanBuildRows(mp *mpool.MPool) {
	if ctr.buildBytes > 0 && mp != nil {
		mp.Release(ctr.buildBytes)
	}
	ctr.buildBytes = 0
	ctr.buildRows = nil
}
