//go:build !linux
// +build !linux

// control/platform_other.go
// Author: momentics <momentics@gmail.com>

package control

import "runtime"

// RegisterPlatformProbes sets generic debug metrics.
func RegisterPlatformProbes(dp *DebugProbes) {
	registerCPUProbes(dp)
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.gomaxprocs", func() any {
		return runtime.GOMAXPROCS(0)
	})
}

// TransparentHugePageMode is always "unknown" off Linux.
func TransparentHugePageMode() string { return "unknown" }
