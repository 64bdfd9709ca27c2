// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations, DTOs, and constants.

package api

import (
	"strings"
	"time"
)

// Size units used throughout the benchmark.
const (
	KiB = 1 << 10
	MiB = 1 << 20
	GiB = 1 << 30
)

// Defaults and limits for a run.
const (
	DefaultChunkSize  = 256 * KiB
	DefaultIterations = 10
	DefaultThreads    = 1
	MaxBufferSize     = 2048 * GiB
)

// Fill values. They must differ so a skipped copy cannot go unnoticed.
const (
	SourceFill          byte = 27
	DestinationSentinel byte = 24
)

// AllocationPolicy selects how the buffer pair is backed.
type AllocationPolicy int

const (
	PolicyNone AllocationPolicy = iota
	PolicyStandard
	PolicyHugePages
)

func (p AllocationPolicy) String() string {
	switch p {
	case PolicyStandard:
		return "standard"
	case PolicyHugePages:
		return "hugepages"
	default:
		return "none"
	}
}

// ParsePolicy accepts the policy names understood on the command line.
// "boring" is kept as an alias of "standard".
func ParsePolicy(s string) (AllocationPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "boring", "standard":
		return PolicyStandard, nil
	case "hugepages", "huge":
		return PolicyHugePages, nil
	}
	return PolicyNone, Errorf(ErrCodeInvalidArgument, "test %s is not recognised", s)
}

// Config is the resolved input of a run.
type Config struct {
	BufferSize int
	ChunkSize  int
	Iterations int
	Threads    int
	Policy     AllocationPolicy
	PinCPUs    bool
}

// IterationResult describes one measured iteration.
type IterationResult struct {
	Index int
	// Bytes is the number of bytes copied and verified, TotalChunks*ChunkSize.
	Bytes         int
	ResetDuration time.Duration
	// DrainDuration ends when the orchestrator fails to claim a chunk.
	DrainDuration time.Duration
	// CopyDuration ends when every claimed chunk has finished copying.
	CopyDuration   time.Duration
	Verified       bool
	MismatchOffset int // -1 when verified
}

// ThroughputGBps returns copied GiB per second.
func (r IterationResult) ThroughputGBps() float64 {
	secs := r.CopyDuration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(r.Bytes) / secs / GiB
}

// RunSummary aggregates the iterations of one run.
type RunSummary struct {
	Iterations int
	Failures   int
	SourceFill time.Duration
	TotalCopy  time.Duration
}

// MeanCopy returns the arithmetic mean copy duration.
func (s RunSummary) MeanCopy() time.Duration {
	if s.Iterations == 0 {
		return 0
	}
	return s.TotalCopy / time.Duration(s.Iterations)
}
