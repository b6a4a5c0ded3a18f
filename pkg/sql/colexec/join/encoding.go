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
	"github.com/keeldb/keel/pkg/container/row"
	"github.com/keeldb/keel/pkg/container/types"
	"github.com/keeldb/keel/pkg/sql/colexec"
)

// selectEncoding picks the row representation for one operator
// instance. Packed requires the optimized path to be enabled and every
// key expression and output column type to be packable; anything else
// falls back to the generic boxed representation. Pure function, the
// result is cached in the container for the operator's lifetime.
func selectEncoding(keys []colexec.Evaluator, outSchema []types.Type, packedEnabled bool) row.Encoding {
	if !packedEnabled {
		return row.Generic
	}
	for _, e := range keys {
		if !e.Typ().Oid.Packable() {
			return row.Generic
		}
	}
	for _, t := range outSchema {
		if !t.Oid.Packable() {
			return row.Generic
		}
	}
	return row.Packed
}
