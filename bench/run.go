// File: bench/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Run wires allocation, the worker pool, iterations and reporting together.

package bench

import (
	"context"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/momentics/copybench/affinity"
	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/control"
	"github.com/momentics/copybench/internal/concurrency"
	"github.com/momentics/copybench/pool"
)

// Option customizes a run.
type Option func(*runOptions)

type runOptions struct {
	log      zerolog.Logger
	reporter api.Reporter
	metrics  *control.MetricsRegistry
	probes   *control.DebugProbes
	pair     *pool.BufferPair
	observer concurrency.ClaimObserver
}

// WithLogger sets the run logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *runOptions) {
		o.log = l
	}
}

// WithReporter sets the progress reporter.
func WithReporter(r api.Reporter) Option {
	return func(o *runOptions) {
		o.reporter = r
	}
}

// WithMetrics publishes run counters into mr.
func WithMetrics(mr *control.MetricsRegistry) Option {
	return func(o *runOptions) {
		o.metrics = mr
	}
}

// WithProbes registers pool and counter probes into dp.
func WithProbes(dp *control.DebugProbes) Option {
	return func(o *runOptions) {
		o.probes = dp
	}
}

// WithBufferPair runs against a caller-owned pair instead of allocating one.
// Config.BufferSize, ChunkSize and Policy are then ignored.
func WithBufferPair(bp *pool.BufferPair) Option {
	return func(o *runOptions) {
		o.pair = bp
	}
}

// WithClaimObserver instruments every chunk claim.
func WithClaimObserver(obs concurrency.ClaimObserver) Option {
	return func(o *runOptions) {
		o.observer = obs
	}
}

// Run executes a whole benchmark: allocate, fill the source, start the
// pool, run cfg.Iterations measured iterations, shut the pool down and
// summarise. Verification mismatches are reported and counted but never
// abort the run. Cancelling ctx stops the run between iterations; the
// summary then covers the iterations completed so far.
//
// With cfg.PinCPUs the calling goroutine's thread is pinned for the run and
// its previous CPU mask restored on return. If the restore fails the
// goroutine is left locked to that thread.
func Run(ctx context.Context, cfg api.Config, opts ...Option) (api.RunSummary, error) {
	o := runOptions{
		log:      zerolog.Nop(),
		reporter: api.NopReporter{},
		metrics:  control.NewMetricsRegistry(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.Iterations <= 0 {
		return api.RunSummary{}, api.Errorf(api.ErrCodeInvalidArgument, "iterations count %d is invalid", cfg.Iterations)
	}
	if cfg.Threads <= 0 {
		return api.RunSummary{}, api.Errorf(api.ErrCodeInvalidArgument, "thread count %d is invalid", cfg.Threads)
	}

	pair := o.pair
	if pair == nil {
		var err error
		pair, err = pool.Allocate(cfg.BufferSize, cfg.ChunkSize, cfg.Policy, pool.WithLogger(o.log))
		if err != nil {
			return api.RunSummary{}, err
		}
		defer func() {
			if err := pair.Close(); err != nil {
				o.log.Warn().Err(err).Msg("releasing buffers")
			}
		}()
	}

	if rem := pair.Size() % pair.ChunkSize; rem != 0 {
		o.log.Warn().Int("bytes", rem).Msg("buffer size is not a multiple of the chunk size; trailing bytes are neither copied nor verified")
	}
	cpuInfo := control.DescribeCPU()
	o.log.Info().
		Str("buffer", humanize.IBytes(uint64(pair.Size()))).
		Str("chunk", humanize.IBytes(uint64(pair.ChunkSize))).
		Int("chunks", pair.TotalChunks()).
		Int("threads", cfg.Threads).
		Int("iterations", cfg.Iterations).
		Str("policy", pair.Policy.String()).
		Str("cpu", cpuInfo.Brand).
		Int("cores", cpuInfo.PhysicalCores).
		Str("l2", cpuInfo.L2).
		Str("l3", cpuInfo.L3).
		Msg("starting benchmark")

	var sum api.RunSummary
	start := time.Now()
	pair.FillSource()
	sum.SourceFill = time.Since(start)
	o.reporter.SourceFilled(pair.Size(), sum.SourceFill)

	copier, err := concurrency.NewChunkCopier(pair.Source, pair.Destination, pair.ChunkSize)
	if err != nil {
		return api.RunSummary{}, err
	}
	if o.observer != nil {
		copier.SetObserver(o.observer)
	}

	runtime.LockOSThread()
	keepLocked := false
	defer func() {
		// A thread left pinned must not go back to the scheduler's pool.
		if !keepLocked {
			runtime.UnlockOSThread()
		}
	}()
	poolOpts := []concurrency.Option{concurrency.WithLogger(o.log)}
	if cfg.PinCPUs {
		d, restore, err := pinOrchestrator(cfg.Threads, o.log)
		if err != nil {
			o.log.Warn().Err(err).Msg("cpu pinning unavailable")
		} else {
			defer func() {
				if err := restore(); err != nil {
					o.log.Warn().Err(err).Msg("restoring cpu mask failed; thread stays locked")
					keepLocked = true
				}
			}()
			poolOpts = append(poolOpts, concurrency.WithDispenser(d))
		}
	}

	sp := concurrency.NewSpinPool(copier, poolOpts...)
	if err := sp.Start(cfg.Threads); err != nil {
		return api.RunSummary{}, err
	}
	if o.probes != nil {
		registerProbes(o.probes, copier, sp)
	}
	o.metrics.Set(control.MetricBufferBytes, pair.Size())
	o.metrics.Set(control.MetricChunksPerIter, pair.TotalChunks())
	o.metrics.Set(control.MetricSourceFillSecs, sum.SourceFill.Seconds())

	runner := NewIterationRunner(pair, copier, sp)
	for i := 0; i < cfg.Iterations; i++ {
		if ctx.Err() != nil {
			o.log.Warn().Int("completed", i).Msg("run cancelled")
			break
		}
		res := runner.Run(i)
		sum.Iterations++
		sum.TotalCopy += res.CopyDuration
		if !res.Verified {
			sum.Failures++
			o.metrics.Add(control.MetricVerifyFailures, 1)
			ev := o.log.Warn().Int("iteration", i).Int("offset", res.MismatchOffset)
			if o.probes != nil {
				ev = ev.Fields(o.probes.DumpState())
			}
			ev.Msg("state at verification failure")
		}
		o.metrics.Add(control.MetricIterations, 1)
		o.metrics.Add(control.MetricCopySeconds, res.CopyDuration.Seconds())
		o.metrics.Add(control.MetricResetSeconds, res.ResetDuration.Seconds())
		o.metrics.Set(control.MetricLastGBps, res.ThroughputGBps())
		o.metrics.Max(control.MetricBestGBps, res.ThroughputGBps())
		o.reporter.Iteration(res)
	}

	sp.Shutdown()
	o.metrics.Set(control.MetricChunksByAgent, sp.ChunksByAgent())
	o.reporter.Summary(sum)
	return sum, ctx.Err()
}

// pinOrchestrator pins the calling thread to the first CPU of a fresh
// dispenser, which the pool then continues with. restore puts the thread's
// previous mask back.
func pinOrchestrator(threads int, log zerolog.Logger) (*affinity.Dispenser, func() error, error) {
	restore, err := affinity.Save()
	if err != nil {
		return nil, nil, err
	}
	d, err := affinity.NewSystemDispenser()
	if err != nil {
		return nil, nil, err
	}
	if d.Len() < threads {
		log.Warn().Int("cpus", d.Len()).Int("threads", threads).Msg("more threads than cpus; pinned threads will share cores")
	}
	cpu := d.Next()
	if err := affinity.SetAffinity(cpu); err != nil {
		log.Warn().Err(err).Int("cpu", cpu).Msg("pinning orchestrator failed")
	}
	return d, restore, nil
}

func registerProbes(dp *control.DebugProbes, c *concurrency.ChunkCopier, sp *concurrency.SpinPool) {
	dp.RegisterProbe("pool.workers", func() any { return sp.Workers() })
	dp.RegisterProbe(control.MetricChunksByAgent, func() any { return sp.ChunksByAgent() })
	dp.RegisterProbe("counter.claimed", func() any { return c.Counter().Claimed() })
	dp.RegisterProbe("counter.completed", func() any { return c.Counter().Completed() })
}
