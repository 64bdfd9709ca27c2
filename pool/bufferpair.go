// File: pool/bufferpair.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// BufferPair owns the two equally sized regions of a benchmark run.

package pool

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/pbnjay/memory"
	"github.com/rs/zerolog"

	"github.com/momentics/copybench/api"
)

// HugePageSize is the alignment used under api.PolicyHugePages.
const HugePageSize = 2 * api.MiB

var pageSize = os.Getpagesize()

// physicalMemory is swapped in tests.
var physicalMemory = memory.TotalMemory

// BufferPair is a source and destination region of identical size.
type BufferPair struct {
	Source      []byte
	Destination []byte
	ChunkSize   int
	Policy      api.AllocationPolicy

	regions []*region
}

// Option customizes allocation.
type Option func(*allocOptions)

type allocOptions struct {
	log zerolog.Logger
}

// WithLogger routes allocation diagnostics to l.
func WithLogger(l zerolog.Logger) Option {
	return func(o *allocOptions) {
		o.log = l
	}
}

// Allocate maps a BufferPair of size bytes per buffer. Under
// api.PolicyHugePages both buffers are 2 MiB aligned and advised for huge
// pages; failure to apply the advice is logged and otherwise ignored.
func Allocate(size, chunkSize int, policy api.AllocationPolicy, opts ...Option) (*BufferPair, error) {
	o := allocOptions{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if size <= 0 || size > api.MaxBufferSize {
		return nil, api.Errorf(api.ErrCodeInvalidArgument, "buffer size %d is invalid", size)
	}
	if chunkSize <= 0 {
		return nil, api.Errorf(api.ErrCodeInvalidArgument, "chunk size %d is invalid", chunkSize)
	}

	align := pageSize
	switch policy {
	case api.PolicyStandard:
	case api.PolicyHugePages:
		align = HugePageSize
	default:
		return nil, api.Errorf(api.ErrCodeInvalidArgument, "allocation policy %s is invalid", policy)
	}

	if total := physicalMemory(); total > 0 && 2*uint64(size) > total {
		return nil, api.NewError(api.ErrCodeResourceExhausted, "allocation failure: buffers exceed physical memory").
			WithContext("requested", humanize.IBytes(2*uint64(size))).
			WithContext("physical", humanize.IBytes(total))
	}

	bp := &BufferPair{ChunkSize: chunkSize, Policy: policy}
	for _, dst := range []*[]byte{&bp.Source, &bp.Destination} {
		r, err := mapRegion(size, align)
		if err != nil {
			_ = bp.Close()
			return nil, api.NewError(api.ErrCodeResourceExhausted, "allocation failure").
				WithContext("size", size).
				WithContext("cause", err.Error())
		}
		bp.regions = append(bp.regions, r)
		*dst = r.data
	}

	if policy == api.PolicyHugePages {
		if err := adviseHugePages(bp.Source); err != nil {
			o.log.Warn().Err(err).Str("buffer", "source").Msg("madvise huge pages failed")
		}
		if err := adviseHugePages(bp.Destination); err != nil {
			o.log.Warn().Err(err).Str("buffer", "destination").Msg("madvise huge pages failed")
		}
	}

	o.log.Debug().
		Str("policy", policy.String()).
		Str("size", humanize.IBytes(uint64(size))).
		Str("src", addrOf(bp.Source)).
		Str("dst", addrOf(bp.Destination)).
		Msg("buffers allocated")
	return bp, nil
}

// NewBufferPair wraps caller-owned slices; Close is then a no-op.
func NewBufferPair(src, dst []byte, chunkSize int) (*BufferPair, error) {
	if len(src) != len(dst) {
		return nil, api.Errorf(api.ErrCodeInvalidArgument, "source (%d) and destination (%d) differ in size", len(src), len(dst))
	}
	if chunkSize <= 0 {
		return nil, api.Errorf(api.ErrCodeInvalidArgument, "chunk size %d is invalid", chunkSize)
	}
	return &BufferPair{Source: src, Destination: dst, ChunkSize: chunkSize, Policy: api.PolicyStandard}, nil
}

// Size returns the length of each buffer.
func (bp *BufferPair) Size() int { return len(bp.Source) }

// TotalChunks returns Size / ChunkSize.
func (bp *BufferPair) TotalChunks() int { return bp.Size() / bp.ChunkSize }

// CopiedLen is the prefix length covered by whole chunks.
func (bp *BufferPair) CopiedLen() int { return bp.TotalChunks() * bp.ChunkSize }

// FillSource writes api.SourceFill over the whole source buffer.
func (bp *BufferPair) FillSource() { Fill(bp.Source, api.SourceFill) }

// ResetDestination writes api.DestinationSentinel over the whole destination buffer.
func (bp *BufferPair) ResetDestination() { Fill(bp.Destination, api.DestinationSentinel) }

// Verify compares both buffers over the copied prefix. offset is the first
// differing byte, or -1.
func (bp *BufferPair) Verify() (ok bool, offset int) {
	n := bp.CopiedLen()
	src, dst := bp.Source[:n], bp.Destination[:n]
	if bytes.Equal(src, dst) {
		return true, -1
	}
	return false, firstMismatch(src, dst)
}

// Close unmaps both regions. The pair must not be used afterwards.
func (bp *BufferPair) Close() error {
	var errs []error
	for _, r := range bp.regions {
		errs = append(errs, r.free())
	}
	bp.regions = nil
	bp.Source, bp.Destination = nil, nil
	return errors.Join(errs...)
}

// Fill sets every byte of b to v.
func Fill(b []byte, v byte) {
	if len(b) == 0 {
		return
	}
	b[0] = v
	for n := 1; n < len(b); n *= 2 {
		copy(b[n:], b[:n])
	}
}

func firstMismatch(a, b []byte) int {
	const step = 4096
	for off := 0; off < len(a); off += step {
		end := min(off+step, len(a))
		if bytes.Equal(a[off:end], b[off:end]) {
			continue
		}
		for i := off; i < end; i++ {
			if a[i] != b[i] {
				return i
			}
		}
	}
	return -1
}

func alignOffset(b []byte, align int) int {
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	return int((uintptr(align) - addr%uintptr(align)) % uintptr(align))
}

func addrOf(b []byte) string {
	return fmt.Sprintf("%#x", uintptr(unsafe.Pointer(unsafe.SliceData(b))))
}
