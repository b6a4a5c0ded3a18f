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
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"

	"github.com/keeldb/keel/pkg/common/kerr"
	"github.com/keeldb/keel/pkg/common/mpool"
	"github.com/keeldb/keel/pkg/container/row"
	"github.com/keeldb/keel/pkg/sql/colexec"
)

// RunPartitions executes one independent build+probe pair per
// partition on a bounded goroutine pool. Each partition owns its own
// hash table; the shared pool only accounts memory, so no other
// cross-partition coordination exists. Output order within a partition
// is preserved; the first partition error cancels the rest and is
// returned.
func RunPartitions(ctx context.Context, mp *mpool.MPool, joins []*InnerJoin, concurrency int) ([][]row.Row, error) {
	if concurrency <= 0 {
		return nil, kerr.NewInvalidInput("partition concurrency %d", concurrency)
	}
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]row.Row, len(joins))
	errs := make([]error, len(joins))
	var wg sync.WaitGroup
	for i, j := range joins {
		i, j := i, j
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			proc := colexec.NewProcess(ctx, mp)
			defer j.Free(proc)
			out, err := drainJoin(proc, j)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			results[i] = out
		}); err != nil {
			wg.Done()
			errs[i] = err
			cancel()
		}
	}
	wg.Wait()

	// a failing partition cancels the rest; report the cause, not the
	// induced cancellations
	var firstErr error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if firstErr == nil || errors.Is(firstErr, context.Canceled) {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func drainJoin(proc *colexec.Process, j *InnerJoin) ([]row.Row, error) {
	if err := j.Prepare(proc); err != nil {
		return nil, err
	}
	var out []row.Row
	for {
		r, err := j.Next(proc)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return out, nil
		}
		out = append(out, r)
	}
}
