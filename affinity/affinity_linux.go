//go:build linux
// +build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific implementation for setting thread CPU affinity.

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// cpuSetSize mirrors CPU_SETSIZE.
const cpuSetSize = 1024

// setAffinityPlatform sets the calling thread's affinity to a given CPU for Linux.
func setAffinityPlatform(cpuID int) error {
	if cpuID < 0 || cpuID >= cpuSetSize {
		return fmt.Errorf("affinity: cpu %d out of range", cpuID)
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	// pid 0 addresses the calling thread.
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity cpu %d: %w", cpuID, err)
	}
	return nil
}

func allowedCPUsPlatform() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, fmt.Errorf("affinity: sched_getaffinity: %w", err)
	}
	cpus := make([]int, 0, set.Count())
	for i := 0; i < cpuSetSize && len(cpus) < cap(cpus); i++ {
		if set.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	if len(cpus) == 0 {
		return nil, ErrNoCPUs
	}
	return cpus, nil
}

func saveMaskPlatform() (func() error, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, fmt.Errorf("affinity: sched_getaffinity: %w", err)
	}
	return func() error {
		if err := unix.SchedSetaffinity(0, &set); err != nil {
			return fmt.Errorf("affinity: restoring mask: %w", err)
		}
		return nil
	}, nil
}
