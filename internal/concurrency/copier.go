// File: internal/concurrency/copier.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ChunkCopier copies one buffer into another chunk by chunk, with chunk
// ownership decided by a shared ChunkCounter.

package concurrency

import "fmt"

// ClaimObserver is notified of every successful claim. agent 0 is the
// orchestrator, workers are numbered from 1.
type ClaimObserver func(agent int, index uint64)

// ChunkCopier binds a source/destination pair to a ChunkCounter.
type ChunkCopier struct {
	src, dst  []byte
	chunkSize int
	counter   *ChunkCounter
	observer  ClaimObserver
}

// NewChunkCopier creates a copier over src and dst. Only the first
// len(src)/chunkSize whole chunks are ever copied; a trailing remainder
// is left untouched.
func NewChunkCopier(src, dst []byte, chunkSize int) (*ChunkCopier, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("concurrency: chunk size %d must be positive", chunkSize)
	}
	if len(src) != len(dst) {
		return nil, fmt.Errorf("concurrency: source (%d) and destination (%d) differ in size", len(src), len(dst))
	}
	total := uint64(len(src) / chunkSize)
	return &ChunkCopier{
		src:       src,
		dst:       dst,
		chunkSize: chunkSize,
		counter:   NewChunkCounter(total),
	}, nil
}

// SetObserver installs a claim hook. Must be called before any drain.
func (c *ChunkCopier) SetObserver(o ClaimObserver) { c.observer = o }

// Counter exposes the underlying ChunkCounter.
func (c *ChunkCopier) Counter() *ChunkCounter { return c.counter }

// TotalChunks returns the number of whole chunks per iteration.
func (c *ChunkCopier) TotalChunks() uint64 { return c.counter.Total() }

// CopiedLen is the length of the prefix each iteration copies.
func (c *ChunkCopier) CopiedLen() int { return int(c.counter.Total()) * c.chunkSize }

// CopyChunk copies chunk index. index must be below TotalChunks.
func (c *ChunkCopier) CopyChunk(index uint64) {
	off := int(index) * c.chunkSize
	copy(c.dst[off:off+c.chunkSize], c.src[off:off+c.chunkSize])
	c.counter.Done()
}

// Drain claims and copies chunks until none are left and returns how many
// this agent copied.
func (c *ChunkCopier) Drain(agent int) int {
	n := 0
	for {
		idx, ok := c.counter.Claim()
		if !ok {
			return n
		}
		if c.observer != nil {
			c.observer(agent, idx)
		}
		c.CopyChunk(idx)
		n++
	}
}

// Begin starts an iteration, releasing every spinning worker.
func (c *ChunkCopier) Begin() { c.counter.Reset() }

// Wait blocks, spinning, until all chunks of the iteration are copied.
func (c *ChunkCopier) Wait() { c.counter.WaitComplete() }
