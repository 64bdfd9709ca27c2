// File: internal/concurrency/spinpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SpinPool runs the persistent copy workers. Workers never block: between
// iterations they keep re-attempting drains against an exhausted counter,
// which avoids scheduler wake-up jitter in the measured window.

package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sys/cpu"

	"github.com/momentics/copybench/affinity"
	"github.com/momentics/copybench/api"
)

// Option customizes a SpinPool.
type Option func(*SpinPool)

// WithLogger sets the pool logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *SpinPool) {
		p.log = l
	}
}

// WithDispenser pins each worker to the next CPU handed out by d.
func WithDispenser(d *affinity.Dispenser) Option {
	return func(p *SpinPool) {
		p.cpus = d
	}
}

// agentStats is padded so workers never share a line when counting.
type agentStats struct {
	chunks atomic.Uint64
	_      cpu.CacheLinePad
}

// SpinPool manages threads-1 busy-spinning workers around a ChunkCopier.
type SpinPool struct {
	copier   *ChunkCopier
	log      zerolog.Logger
	cpus     *affinity.Dispenser
	shutdown atomic.Bool
	started  atomic.Bool
	closed   atomic.Bool
	wg       sync.WaitGroup
	stats    []agentStats
}

// NewSpinPool creates an idle pool over copier.
func NewSpinPool(copier *ChunkCopier, opts ...Option) *SpinPool {
	p := &SpinPool{
		copier: copier,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start spawns threads-1 workers; the calling goroutine is the remaining
// agent. It returns once every worker is locked to its thread and spinning.
func (p *SpinPool) Start(threads int) error {
	if threads <= 0 {
		return api.Errorf(api.ErrCodeInvalidArgument, "thread count %d is invalid", threads)
	}
	if p.closed.Load() {
		return api.ErrPoolClosed
	}
	if !p.started.CompareAndSwap(false, true) {
		return api.NewError(api.ErrCodeInternal, "worker pool already started")
	}
	p.stats = make([]agentStats, threads)

	var ready sync.WaitGroup
	for id := 1; id < threads; id++ {
		cpuID := -1
		if p.cpus != nil {
			cpuID = p.cpus.Next()
		}
		ready.Add(1)
		p.wg.Add(1)
		go p.run(id, cpuID, &ready)
	}
	ready.Wait()
	p.log.Debug().Int("workers", threads-1).Msg("worker pool started")
	return nil
}

func (p *SpinPool) run(id, cpuID int, ready *sync.WaitGroup) {
	defer p.wg.Done()
	runtime.LockOSThread()
	// A pinned worker exits still locked so its thread is discarded.
	if cpuID < 0 {
		defer runtime.UnlockOSThread()
	}

	if cpuID >= 0 {
		if err := affinity.SetAffinity(cpuID); err != nil {
			p.log.Warn().Err(err).Int("worker", id).Int("cpu", cpuID).Msg("pinning failed")
		}
	}
	ready.Done()

	st := &p.stats[id]
	for !p.shutdown.Load() {
		if n := p.copier.Drain(id); n > 0 {
			st.chunks.Add(uint64(n))
		}
	}
}

// Drain lets the orchestrator take part as agent 0.
func (p *SpinPool) Drain() int {
	n := p.copier.Drain(0)
	if len(p.stats) > 0 {
		p.stats[0].chunks.Add(uint64(n))
	}
	return n
}

// Workers returns the number of dedicated worker goroutines.
func (p *SpinPool) Workers() int {
	if len(p.stats) == 0 {
		return 0
	}
	return len(p.stats) - 1
}

// ChunksByAgent returns how many chunks each agent has copied so far.
// Index 0 is the orchestrator.
func (p *SpinPool) ChunksByAgent() []uint64 {
	out := make([]uint64, len(p.stats))
	for i := range p.stats {
		out[i] = p.stats[i].chunks.Load()
	}
	return out
}

// Shutdown raises the shutdown flag and joins all workers. Call it once,
// after the last iteration; repeated calls are no-ops.
func (p *SpinPool) Shutdown() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.shutdown.Store(true)
	p.wg.Wait()
	p.log.Debug().Uints64("chunks_by_agent", p.ChunksByAgent()).Msg("worker pool stopped")
}
