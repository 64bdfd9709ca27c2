// File: internal/concurrency/counter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ChunkCounter hands out chunk indices to whichever agent asks next.
// Both counters sit on their own cache line.

package concurrency

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// ChunkCounter is the sole coordination primitive of the copy engine.
// The claim counter is only ever incremented or reset to zero by Reset;
// while exhausted (>= total) it parks every agent.
type ChunkCounter struct {
	_         cpu.CacheLinePad
	next      atomic.Uint64
	_         cpu.CacheLinePad
	completed atomic.Uint64
	_         cpu.CacheLinePad
	total     uint64
}

// NewChunkCounter returns a counter for total chunks in the exhausted state.
func NewChunkCounter(total uint64) *ChunkCounter {
	c := &ChunkCounter{total: total}
	c.next.Store(total)
	c.completed.Store(total)
	return c
}

// Total returns the number of chunks per iteration.
func (c *ChunkCounter) Total() uint64 { return c.total }

// Claim reserves the next chunk index. ok is false when no work is left.
func (c *ChunkCounter) Claim() (index uint64, ok bool) {
	// Plain load first: idle spinners stay off the write path.
	if c.next.Load() >= c.total {
		return 0, false
	}
	index = c.next.Add(1) - 1
	return index, index < c.total
}

// Done marks one claimed chunk as fully copied.
func (c *ChunkCounter) Done() { c.completed.Add(1) }

// Completed reports how many chunks finished in the current iteration.
func (c *ChunkCounter) Completed() uint64 { return c.completed.Load() }

// Claimed reports the raw claim counter value.
func (c *ChunkCounter) Claimed() uint64 { return c.next.Load() }

// Reset opens a new iteration. The completion counter is cleared before
// the claim counter is released so no Done can be lost.
func (c *ChunkCounter) Reset() {
	c.completed.Store(0)
	c.next.Store(0)
}

// WaitComplete spins until every chunk of the iteration has been copied.
func (c *ChunkCounter) WaitComplete() {
	for c.completed.Load() < c.total {
	}
}
