// File: cmd/copybench/main.go
// Author: momentics <momentics@gmail.com>
//
// copybench measures memory-copy throughput between two large buffers with
// a pool of spinning copy threads.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/bench"
	"github.com/momentics/copybench/control"
	"github.com/momentics/copybench/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command and returns its exit status: 0 on success or
// help, 2 for bad arguments, 130 when interrupted and 1 otherwise.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := control.ParseArgs(args)
	if errors.Is(err, control.ErrHelp) {
		fmt.Fprint(stdout, control.Usage())
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		fmt.Fprint(stderr, control.Usage())
		return 2
	}

	log, err := report.NewLogger(stderr, opts.LogLevel, opts.LogFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		fmt.Fprint(stderr, control.Usage())
		return 2
	}

	// Every agent spins, so each needs its own P.
	if procs := runtime.GOMAXPROCS(0); procs < opts.Threads {
		runtime.GOMAXPROCS(opts.Threads)
		log.Info().Int("from", procs).Int("to", opts.Threads).Msg("raised GOMAXPROCS")
	}
	if opts.Threads > runtime.NumCPU() {
		log.Warn().Int("threads", opts.Threads).Int("cpus", runtime.NumCPU()).Msg("more threads than cpus; spinning threads will contend")
	}

	probes := control.NewDebugProbes()
	control.RegisterPlatformProbes(probes)
	if opts.Policy == api.PolicyHugePages {
		log.Info().Str("thp", control.TransparentHugePageMode()).Msg("using huge pages")
	}

	metrics := control.NewMetricsRegistry()
	_, err = bench.Run(ctx, opts.Config,
		bench.WithLogger(log),
		bench.WithReporter(report.NewConsole(log)),
		bench.WithMetrics(metrics),
		bench.WithProbes(probes),
	)
	log.Debug().Fields(metrics.GetSnapshot()).Msg("metrics")
	log.Debug().Fields(probes.DumpState()).Msg("probes")

	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		log.Error().Err(err).Msg("benchmark failed")
		return 1
	}
}
