package bench

import (
	"bytes"
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/copybench/affinity"
	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/control"
	"github.com/momentics/copybench/internal/concurrency"
	"github.com/momentics/copybench/pool"
)

type recorder struct {
	mu      sync.Mutex
	filled  int
	results []api.IterationResult
	summary *api.RunSummary
}

func (r *recorder) SourceFilled(size int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filled = size
}

func (r *recorder) Iteration(res api.IterationResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) Summary(s api.RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = &s
}

func smallPair(t *testing.T, size, chunk int) *pool.BufferPair {
	t.Helper()
	bp, err := pool.NewBufferPair(make([]byte, size), make([]byte, size), chunk)
	require.NoError(t, err)
	return bp
}

func TestRunAllocatesAndVerifies(t *testing.T) {
	rec := &recorder{}
	mr := control.NewMetricsRegistry()
	dp := control.NewDebugProbes()
	cfg := api.Config{
		BufferSize: 4 * api.MiB,
		ChunkSize:  64 * api.KiB,
		Iterations: 3,
		Threads:    4,
		Policy:     api.PolicyStandard,
	}

	sum, err := Run(context.Background(), cfg, WithReporter(rec), WithMetrics(mr), WithProbes(dp))
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Iterations)
	assert.Zero(t, sum.Failures)
	assert.Equal(t, 4*api.MiB, rec.filled)
	require.Len(t, rec.results, 3)
	for i, r := range rec.results {
		assert.Equal(t, i, r.Index)
		assert.True(t, r.Verified)
		assert.Equal(t, -1, r.MismatchOffset)
		assert.Equal(t, 4*api.MiB, r.Bytes)
		assert.GreaterOrEqual(t, r.CopyDuration, r.DrainDuration)
	}
	require.NotNil(t, rec.summary)
	assert.Equal(t, sum, *rec.summary)

	snap := mr.GetSnapshot()
	assert.Equal(t, 3.0, snap[control.MetricIterations])
	assert.Equal(t, 64, snap[control.MetricChunksPerIter])
	byAgent := snap[control.MetricChunksByAgent].([]uint64)
	require.Len(t, byAgent, 4)
	total := uint64(0)
	for _, n := range byAgent {
		total += n
	}
	assert.Equal(t, uint64(3*64), total)

	state := dp.DumpState()
	assert.Equal(t, 3, state["pool.workers"])
	assert.Equal(t, uint64(64), state["counter.completed"])
}

func TestRunClaimsEachChunkOncePerIteration(t *testing.T) {
	const iterations = 4
	bp := smallPair(t, 256*api.KiB, 4*api.KiB)

	var mu sync.Mutex
	claims := map[uint64]int{}
	_, err := Run(context.Background(), api.Config{Iterations: iterations, Threads: 3},
		WithBufferPair(bp),
		WithClaimObserver(func(_ int, idx uint64) {
			mu.Lock()
			claims[idx]++
			mu.Unlock()
		}))
	require.NoError(t, err)

	require.Len(t, claims, bp.TotalChunks())
	for idx, n := range claims {
		assert.Equal(t, iterations, n, "chunk %d", idx)
	}
}

func TestRunRemainderKeepsSentinel(t *testing.T) {
	size := api.MiB + 1
	bp := smallPair(t, size, 256*api.KiB)
	rec := &recorder{}

	_, err := Run(context.Background(), api.Config{Iterations: 1, Threads: 2},
		WithBufferPair(bp), WithReporter(rec))
	require.NoError(t, err)

	require.Len(t, rec.results, 1)
	assert.True(t, rec.results[0].Verified)
	assert.Equal(t, api.MiB, rec.results[0].Bytes)
	assert.Equal(t, api.DestinationSentinel, bp.Destination[size-1])
	assert.Equal(t, api.SourceFill, bp.Source[size-1])
}

func TestRunCancelledStopsBetweenIterations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recorder{}

	sum, err := Run(ctx, api.Config{Iterations: 5, Threads: 2},
		WithBufferPair(smallPair(t, 64*api.KiB, 4*api.KiB)), WithReporter(rec))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sum.Iterations)
	assert.Empty(t, rec.results)
	assert.NotNil(t, rec.summary)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	_, err := Run(context.Background(), api.Config{Iterations: 0, Threads: 1})
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
	_, err = Run(context.Background(), api.Config{Iterations: 1, Threads: 0})
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
	_, err = Run(context.Background(), api.Config{Iterations: 1, Threads: 1, BufferSize: api.MiB, ChunkSize: api.KiB})
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestIterationRunnerIdempotent(t *testing.T) {
	bp := smallPair(t, api.MiB, 256*api.KiB)
	bp.FillSource()
	c, err := concurrency.NewChunkCopier(bp.Source, bp.Destination, bp.ChunkSize)
	require.NoError(t, err)
	sp := concurrency.NewSpinPool(c)
	require.NoError(t, sp.Start(2))
	defer sp.Shutdown()

	r := NewIterationRunner(bp, c, sp)
	first := r.Run(0)
	second := r.Run(1)
	assert.True(t, first.Verified)
	assert.Equal(t, first.Verified, second.Verified)
	assert.Equal(t, first.Bytes, second.Bytes)
	assert.Equal(t, bp.Source, bp.Destination)
}

func TestRunVerificationFailureIsNotFatal(t *testing.T) {
	bp := smallPair(t, 64*api.KiB, 4*api.KiB)
	rec := &recorder{}
	mr := control.NewMetricsRegistry()
	dp := control.NewDebugProbes()
	var logs bytes.Buffer

	// Single agent: chunk 0 is already copied when chunk 1 is claimed, so
	// changing the source now leaves the destination stale at offset 10.
	corrupted := false
	sum, err := Run(context.Background(), api.Config{Iterations: 3, Threads: 1},
		WithBufferPair(bp),
		WithReporter(rec),
		WithMetrics(mr),
		WithProbes(dp),
		WithLogger(zerolog.New(&logs)),
		WithClaimObserver(func(_ int, idx uint64) {
			if idx == 1 && !corrupted {
				corrupted = true
				bp.Source[10] = 99
			}
		}))
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Iterations)
	assert.Equal(t, 1, sum.Failures)
	require.Len(t, rec.results, 3)
	assert.False(t, rec.results[0].Verified)
	assert.Equal(t, 10, rec.results[0].MismatchOffset)
	assert.True(t, rec.results[1].Verified)
	assert.True(t, rec.results[2].Verified)

	v, ok := mr.Get(control.MetricVerifyFailures)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	assert.Equal(t, 3.0, mr.GetSnapshot()[control.MetricIterations])

	assert.Contains(t, logs.String(), "state at verification failure")
	assert.Contains(t, logs.String(), `"counter.completed":16`)
}

func TestRunPinnedRestoresCPUMask(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("pinning is linux only")
	}
	cpus, err := affinity.CPUs()
	require.NoError(t, err)

	type outcome struct {
		sum   api.RunSummary
		err   error
		after []int
	}
	res := make(chan outcome, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		var o outcome
		o.sum, o.err = Run(context.Background(),
			api.Config{Iterations: 2, Threads: 2, PinCPUs: true},
			WithBufferPair(smallPair(t, 256*api.KiB, 16*api.KiB)))
		o.after, _ = affinity.CPUs()
		res <- o
	}()

	o := <-res
	require.NoError(t, o.err)
	assert.Equal(t, 2, o.sum.Iterations)
	assert.Zero(t, o.sum.Failures)
	assert.Equal(t, cpus, o.after)
}
