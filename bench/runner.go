// File: bench/runner.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package bench

import (
	"time"

	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/internal/concurrency"
	"github.com/momentics/copybench/pool"
)

// IterationRunner drives single measured iterations. It must only be used
// from the goroutine that owns the pool's agent 0 slot.
type IterationRunner struct {
	pair   *pool.BufferPair
	copier *concurrency.ChunkCopier
	pool   *concurrency.SpinPool
}

// NewIterationRunner binds a buffer pair to its copier and started pool.
func NewIterationRunner(pair *pool.BufferPair, copier *concurrency.ChunkCopier, sp *concurrency.SpinPool) *IterationRunner {
	return &IterationRunner{pair: pair, copier: copier, pool: sp}
}

// Run performs iteration index:
//  1. sentinel-fill the destination
//  2. reset the chunk counter, which releases the spinning workers
//  3. drain chunks on this goroutine
//  4. wait until every claimed chunk has landed
//  5. verify the copied prefix
func (r *IterationRunner) Run(index int) api.IterationResult {
	res := api.IterationResult{Index: index, Bytes: r.pair.CopiedLen()}

	start := time.Now()
	r.pair.ResetDestination()
	res.ResetDuration = time.Since(start)

	r.copier.Begin()
	start = time.Now()
	r.pool.Drain()
	res.DrainDuration = time.Since(start)
	// Workers may still be inside their last chunk here.
	r.copier.Wait()
	res.CopyDuration = time.Since(start)

	res.Verified, res.MismatchOffset = r.pair.Verify()
	return res
}
