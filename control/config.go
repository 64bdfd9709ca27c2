// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Command-line configuration for a benchmark run.

package control

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/momentics/copybench/api"
)

// ErrHelp is returned when -h/--help was requested.
var ErrHelp = pflag.ErrHelp

// Options is the full result of command-line parsing.
type Options struct {
	api.Config
	LogLevel  string
	LogFormat string
}

// ParseArgs parses args (without the program name). Any error is fatal to
// the run and must be reported with Usage before anything is allocated.
func ParseArgs(args []string) (Options, error) {
	fs := newFlagSet()
	var (
		buffer     = fs.StringP("buffer", "b", "", "")
		iterations = fs.IntP("iterations", "i", api.DefaultIterations, "")
		threads    = fs.IntP("threads", "w", api.DefaultThreads, "")
		test       = fs.StringP("test", "t", "", "")
		chunk      = fs.StringP("chunk", "c", humanize.IBytes(api.DefaultChunkSize), "")
		pin        = fs.Bool("pin", false, "")
		level      = fs.String("log-level", "info", "")
		format     = fs.String("log-format", "console", "")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return Options{}, ErrHelp
		}
		return Options{}, api.NewError(api.ErrCodeInvalidArgument, err.Error())
	}
	if fs.NArg() > 0 {
		return Options{}, api.Errorf(api.ErrCodeInvalidArgument, "parameter %s is not recognised", fs.Arg(0))
	}
	if *buffer == "" || *test == "" {
		return Options{}, api.NewError(api.ErrCodeInvalidArgument, "please provide a buffer size and a copy programme to test")
	}

	opts := Options{LogLevel: *level, LogFormat: *format}
	var err error
	if opts.BufferSize, err = ParseBufferSize(*buffer); err != nil {
		return Options{}, err
	}
	if opts.Policy, err = api.ParsePolicy(*test); err != nil {
		return Options{}, err
	}
	if *iterations <= 0 {
		return Options{}, api.Errorf(api.ErrCodeInvalidArgument, "iterations count %d is invalid", *iterations)
	}
	if *threads <= 0 {
		return Options{}, api.Errorf(api.ErrCodeInvalidArgument, "thread count %d is invalid", *threads)
	}
	cs, err := humanize.ParseBytes(*chunk)
	if err != nil || cs == 0 {
		return Options{}, api.Errorf(api.ErrCodeInvalidArgument, "chunk size %s is invalid", *chunk)
	}
	if cs > uint64(opts.BufferSize) {
		return Options{}, api.Errorf(api.ErrCodeInvalidArgument, "chunk size %s exceeds buffer size", *chunk)
	}
	switch *format {
	case "console", "json":
	default:
		return Options{}, api.Errorf(api.ErrCodeInvalidArgument, "log format %s is not recognised", *format)
	}

	opts.ChunkSize = int(cs)
	opts.Iterations = *iterations
	opts.Threads = *threads
	opts.PinCPUs = *pin
	return opts, nil
}

// ParseBufferSize accepts a bare integer as gigabytes, or a size with a unit.
func ParseBufferSize(s string) (int, error) {
	s = strings.TrimSpace(s)
	var size uint64
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= 0 {
			return 0, api.Errorf(api.ErrCodeInvalidArgument, "buffer size %s is invalid", s)
		}
		if n > api.MaxBufferSize/api.GiB {
			return 0, api.NewError(api.ErrCodeInvalidArgument, "do you *really* have more than 2TB of memory?")
		}
		size = uint64(n) * api.GiB
	} else {
		size, err = humanize.ParseBytes(s)
		if err != nil || size == 0 {
			return 0, api.Errorf(api.ErrCodeInvalidArgument, "buffer size %s is invalid", s)
		}
		if size > api.MaxBufferSize {
			return 0, api.NewError(api.ErrCodeInvalidArgument, "do you *really* have more than 2TB of memory?")
		}
	}
	return int(size), nil
}

// Usage returns the help text.
func Usage() string {
	var b strings.Builder
	b.WriteString("Usage: copybench -b <size> -t <copy programme> [options]\n\n")
	b.WriteString("Required parameters:\n")
	b.WriteString("  -b, --buffer <size>        Size of the source and destination buffers.\n")
	b.WriteString("                             A bare number is gigabytes (1-2048); units such as 512MiB are accepted.\n")
	b.WriteString("  -t, --test <programme>     Allocation programme:\n")
	b.WriteString("                               boring    - standard page-aligned allocation.\n")
	b.WriteString("                               hugepages - same as above, but backed by huge pages.\n")
	b.WriteString("\nOptions:\n")
	fmt.Fprintf(&b, "  -i, --iterations <n>       Number of test iterations (default %d).\n", api.DefaultIterations)
	fmt.Fprintf(&b, "  -w, --threads <n>          Number of threads, including the main one (default %d).\n", api.DefaultThreads)
	fmt.Fprintf(&b, "  -c, --chunk <size>         Chunk size claimed per copy (default %s).\n", humanize.IBytes(api.DefaultChunkSize))
	b.WriteString("      --pin                  Pin every copying thread to its own CPU.\n")
	b.WriteString("      --log-level <level>    trace, debug, info, warn or error (default info).\n")
	b.WriteString("      --log-format <format>  console or json (default console).\n")
	return b.String()
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("copybench", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false
	return fs
}
