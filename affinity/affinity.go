// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files (affinity_linux.go, affinity_stub.go) guarded by build tags.

package affinity

import (
	"errors"
	"sync"

	"github.com/eapache/queue"
)

// ErrNoCPUs is returned when the allowed CPU set is empty.
var ErrNoCPUs = errors.New("affinity: no CPUs available")

// SetAffinity pins the current OS thread to a given logical CPU/core on supported platforms.
// The caller must hold runtime.LockOSThread. On unsupported platforms returns an error.
func SetAffinity(cpuID int) error {
	return setAffinityPlatform(cpuID)
}

// Save captures the calling thread's CPU mask. The returned restore func
// re-applies it; the caller must hold runtime.LockOSThread across both.
func Save() (restore func() error, err error) {
	return saveMaskPlatform()
}

// CPUs returns the logical CPUs the process may run on, in ascending order.
func CPUs() ([]int, error) {
	return allowedCPUsPlatform()
}

// Dispenser hands out CPUs round-robin so that consecutive agents land on
// distinct cores until the set wraps.
type Dispenser struct {
	mu sync.Mutex
	q  *queue.Queue
}

// NewDispenser builds a dispenser over cpus.
func NewDispenser(cpus []int) (*Dispenser, error) {
	if len(cpus) == 0 {
		return nil, ErrNoCPUs
	}
	q := queue.New()
	for _, c := range cpus {
		q.Add(c)
	}
	return &Dispenser{q: q}, nil
}

// NewSystemDispenser builds a dispenser over the process's allowed CPUs.
func NewSystemDispenser() (*Dispenser, error) {
	cpus, err := CPUs()
	if err != nil {
		return nil, err
	}
	return NewDispenser(cpus)
}

// Next returns the next CPU and rotates it to the back of the queue.
func (d *Dispenser) Next() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	cpu := d.q.Remove().(int)
	d.q.Add(cpu)
	return cpu
}

// Len returns the number of distinct CPUs in rotation.
func (d *Dispenser) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.q.Length()
}
