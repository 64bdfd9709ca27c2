package affinity_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/copybench/affinity"
)

func TestDispenserRoundRobin(t *testing.T) {
	d, err := affinity.NewDispenser([]int{3, 5, 7})
	require.NoError(t, err)
	assert.Equal(t, 3, d.Len())

	got := make([]int, 0, 7)
	for i := 0; i < 7; i++ {
		got = append(got, d.Next())
	}
	assert.Equal(t, []int{3, 5, 7, 3, 5, 7, 3}, got)
	assert.Equal(t, 3, d.Len())
}

func TestDispenserEmpty(t *testing.T) {
	_, err := affinity.NewDispenser(nil)
	assert.ErrorIs(t, err, affinity.ErrNoCPUs)
}

func TestSetAffinityToAllowedCPU(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("affinity is linux only")
	}
	cpus, err := affinity.CPUs()
	require.NoError(t, err)
	require.NotEmpty(t, cpus)

	// The goroutine exits still locked, so the pinned thread is discarded.
	errs := make(chan error, 2)
	go func() {
		runtime.LockOSThread()
		errs <- affinity.SetAffinity(cpus[0])
		errs <- affinity.SetAffinity(-1)
	}()
	assert.NoError(t, <-errs)
	assert.Error(t, <-errs)
}

func TestSaveRestoresMask(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("affinity is linux only")
	}
	before, err := affinity.CPUs()
	require.NoError(t, err)

	type outcome struct {
		pinned, restored []int
		err              error
	}
	res := make(chan outcome, 1)
	go func() {
		runtime.LockOSThread()
		var o outcome
		defer func() { res <- o }()
		restore, err := affinity.Save()
		if err != nil {
			o.err = err
			return
		}
		if o.err = affinity.SetAffinity(before[0]); o.err != nil {
			return
		}
		o.pinned, _ = affinity.CPUs()
		if o.err = restore(); o.err != nil {
			return
		}
		o.restored, o.err = affinity.CPUs()
		runtime.UnlockOSThread()
	}()

	o := <-res
	require.NoError(t, o.err)
	assert.Equal(t, []int{before[0]}, o.pinned)
	assert.Equal(t, before, o.restored)
}
