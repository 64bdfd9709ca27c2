//go:build linux
// +build linux

// control/platform_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific platform debug probe integrations.

package control

import (
	"os"
	"runtime"
	"strings"
)

const thpEnabledPath = "/sys/kernel/mm/transparent_hugepage/enabled"

// RegisterPlatformProbes sets Linux-specific debug metrics.
func RegisterPlatformProbes(dp *DebugProbes) {
	registerCPUProbes(dp)
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.gomaxprocs", func() any {
		return runtime.GOMAXPROCS(0)
	})
	dp.RegisterProbe("platform.thp", func() any {
		return TransparentHugePageMode()
	})
}

// TransparentHugePageMode returns the bracketed THP mode ("always",
// "madvise", "never"), or "unknown" when it cannot be read.
func TransparentHugePageMode() string {
	raw, err := os.ReadFile(thpEnabledPath)
	if err != nil {
		return "unknown"
	}
	return parseTHPMode(string(raw))
}

func parseTHPMode(s string) string {
	for _, f := range strings.Fields(s) {
		if strings.HasPrefix(f, "[") && strings.HasSuffix(f, "]") {
			return strings.Trim(f, "[]")
		}
	}
	return "unknown"
}
