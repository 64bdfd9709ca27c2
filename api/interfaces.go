// File: api/interfaces.go
// Author: momentics <momentics@gmail.com>
//
// Contracts between the benchmark core and its observers.

package api

import "time"

// Reporter consumes benchmark progress. Implementations are purely
// observational; the run never depends on them.
type Reporter interface {
	SourceFilled(size int, d time.Duration)
	Iteration(r IterationResult)
	Summary(s RunSummary)
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) SourceFilled(int, time.Duration) {}
func (NopReporter) Iteration(IterationResult)       {}
func (NopReporter) Summary(RunSummary)              {}
