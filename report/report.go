// File: report/report.go
// Author: momentics <momentics@gmail.com>
//
// Structured console reporting of benchmark progress.

package report

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/momentics/copybench/api"
)

// Ensure compile-time interface compliance.
var _ api.Reporter = (*Console)(nil)

// Console writes one structured event per benchmark step.
type Console struct {
	log zerolog.Logger
}

// NewConsole returns a reporter writing to l.
func NewConsole(l zerolog.Logger) *Console {
	return &Console{log: l}
}

// SourceFilled reports the untimed source preparation step.
func (c *Console) SourceFilled(size int, d time.Duration) {
	c.log.Info().
		Str("size", humanize.IBytes(uint64(size))).
		Float64("fill_s", d.Seconds()).
		Msg("source buffer filled")
}

// Iteration reports one measured iteration. Mismatches are logged at warn
// level and never stop the run.
func (c *Console) Iteration(r api.IterationResult) {
	lvl, msg := zerolog.InfoLevel, "iteration complete"
	if !r.Verified {
		lvl, msg = zerolog.WarnLevel, "source and destination do not match"
	}
	ev := c.log.WithLevel(lvl)
	if !r.Verified {
		ev = ev.Int("mismatch_offset", r.MismatchOffset)
	}
	ev.Int("iteration", r.Index).
		Float64("reset_s", r.ResetDuration.Seconds()).
		Float64("drain_s", r.DrainDuration.Seconds()).
		Float64("copy_s", r.CopyDuration.Seconds()).
		Float64("gbps", r.ThroughputGBps()).
		Bool("verified", r.Verified).
		Msg(msg)
}

// Summary reports the run totals.
func (c *Console) Summary(s api.RunSummary) {
	lvl := zerolog.InfoLevel
	if s.Failures > 0 {
		lvl = zerolog.WarnLevel
	}
	c.log.WithLevel(lvl).Int("iterations", s.Iterations).
		Int("failures", s.Failures).
		Float64("total_s", s.TotalCopy.Seconds()).
		Float64("mean_s", s.MeanCopy().Seconds()).
		Msg("run complete")
}
