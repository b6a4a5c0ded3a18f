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

	"github.com/keeldb/keel/pkg/container/row"
)

// Rows is a slice-backed RowSource.
type Rows struct {
	rows []row.Row
	i    int
}

func NewRows(rows ...row.Row) *Rows {
	return &Rows{rows: rows}
}

func (s *Rows) Next(ctx context.Context) (row.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.i >= len(s.rows) {
		return nil, nil
	}
	r := s.rows[s.i]
	s.i++
	return r, nil
}

func (s *Rows) Reset() {
	s.i = 0
}

// Drain pulls a source to exhaustion and collects the rows. The caller
// owns the returned slice.
func Drain(ctx context.Context, src RowSource) ([]row.Row, error) {
	var out []row.Row
	for {
		r, err := src.Next(ctx)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return out, nil
		}
		out = append(out, r)
	}
}
