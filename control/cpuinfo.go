// control/cpuinfo.go
// Author: momentics <momentics@gmail.com>
//
// Processor description for run headers and debug probes.

package control

import (
	"github.com/dustin/go-humanize"
	"github.com/klauspost/cpuid/v2"
)

// CPUInfo summarises the processor a run executes on.
type CPUInfo struct {
	Brand         string
	PhysicalCores int
	LogicalCores  int
	CacheLine     int
	L1D           string
	L2            string
	L3            string
}

// DescribeCPU reads the processor identification once per call.
func DescribeCPU() CPUInfo {
	c := cpuid.CPU
	brand := c.BrandName
	if brand == "" {
		brand = "unknown"
	}
	return CPUInfo{
		Brand:         brand,
		PhysicalCores: c.PhysicalCores,
		LogicalCores:  c.LogicalCores,
		CacheLine:     c.CacheLine,
		L1D:           cacheSize(c.Cache.L1D),
		L2:            cacheSize(c.Cache.L2),
		L3:            cacheSize(c.Cache.L3),
	}
}

// cacheSize formats a cpuid cache size; cpuid reports -1 when unknown.
func cacheSize(n int) string {
	if n <= 0 {
		return "unknown"
	}
	return humanize.IBytes(uint64(n))
}

func registerCPUProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpu", func() any {
		return DescribeCPU()
	})
}
