package control

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/copybench/api"
)

func TestParseArgsDefaults(t *testing.T) {
	opts, err := ParseArgs([]string{"-b", "2", "-t", "boring"})
	require.NoError(t, err)
	assert.Equal(t, 2*api.GiB, opts.BufferSize)
	assert.Equal(t, api.PolicyStandard, opts.Policy)
	assert.Equal(t, api.DefaultIterations, opts.Iterations)
	assert.Equal(t, api.DefaultThreads, opts.Threads)
	assert.Equal(t, api.DefaultChunkSize, opts.ChunkSize)
	assert.False(t, opts.PinCPUs)
	assert.Equal(t, "info", opts.LogLevel)
	assert.Equal(t, "console", opts.LogFormat)
}

func TestParseArgsFull(t *testing.T) {
	opts, err := ParseArgs([]string{
		"--buffer", "512MiB", "-t", "hugepages", "-i", "3", "-w", "8",
		"--chunk", "64KiB", "--pin", "--log-level", "debug", "--log-format", "json",
	})
	require.NoError(t, err)
	assert.Equal(t, 512*api.MiB, opts.BufferSize)
	assert.Equal(t, api.PolicyHugePages, opts.Policy)
	assert.Equal(t, 3, opts.Iterations)
	assert.Equal(t, 8, opts.Threads)
	assert.Equal(t, 64*api.KiB, opts.ChunkSize)
	assert.True(t, opts.PinCPUs)
	assert.Equal(t, "json", opts.LogFormat)
}

func TestParseArgsErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
		msg  string
	}{
		{"missing everything", nil, "please provide"},
		{"missing programme", []string{"-b", "1"}, "please provide"},
		{"missing buffer", []string{"-t", "boring"}, "please provide"},
		{"zero buffer", []string{"-b", "0", "-t", "boring"}, "buffer size 0 is invalid"},
		{"negative buffer", []string{"-b", "-3", "-t", "boring"}, "is invalid"},
		{"huge buffer", []string{"-b", "2049", "-t", "boring"}, "2TB"},
		{"huge buffer units", []string{"-b", "3TiB", "-t", "boring"}, "2TB"},
		{"garbage buffer", []string{"-b", "lots", "-t", "boring"}, "buffer size lots is invalid"},
		{"bad programme", []string{"-b", "1", "-t", "fancy"}, "test fancy is not recognised"},
		{"bad iterations", []string{"-b", "1", "-t", "boring", "-i", "0"}, "iterations count 0 is invalid"},
		{"bad threads", []string{"-b", "1", "-t", "boring", "-w", "-1"}, "thread count -1 is invalid"},
		{"bad chunk", []string{"-b", "1", "-t", "boring", "-c", "0"}, "chunk size 0 is invalid"},
		{"chunk too big", []string{"-b", "1MiB", "-t", "boring", "-c", "2MiB"}, "exceeds buffer size"},
		{"unknown flag", []string{"-b", "1", "-t", "boring", "-x", "1"}, "unknown shorthand flag"},
		{"stray argument", []string{"-b", "1", "-t", "boring", "extra"}, "parameter extra is not recognised"},
		{"bad log format", []string{"-b", "1", "-t", "boring", "--log-format", "xml"}, "log format xml"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseArgs(tc.args)
			require.Error(t, err)
			assert.ErrorIs(t, err, api.ErrInvalidArgument)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestParseArgsHelp(t *testing.T) {
	_, err := ParseArgs([]string{"--help"})
	assert.ErrorIs(t, err, ErrHelp)
}

func TestParseBufferSizeUnits(t *testing.T) {
	for in, want := range map[string]int{
		"1":      api.GiB,
		"2048":   2048 * api.GiB,
		"1GiB":   api.GiB,
		"1 MiB":  api.MiB,
		"1.5GiB": api.GiB + api.GiB/2,
	} {
		got, err := ParseBufferSize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestUsageMentionsEveryFlag(t *testing.T) {
	u := Usage()
	for _, f := range []string{"--buffer", "--test", "--iterations", "--threads", "--chunk", "--pin", "--log-level", "--log-format", "hugepages", "boring"} {
		assert.True(t, strings.Contains(u, f), f)
	}
}
