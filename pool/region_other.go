//go:build !linux
// +build !linux

// File: pool/region_other.go
// Author: momentics <momentics@gmail.com>
//
// Heap-backed fallback for platforms without the Linux mapping path.
// Huge page advice is unavailable here.

package pool

import "github.com/momentics/copybench/api"

type region struct {
	data []byte
}

func mapRegion(size, align int) (*region, error) {
	raw := make([]byte, size+align)
	off := alignOffset(raw, align)
	return &region{data: raw[off : off+size : off+size]}, nil
}

func (r *region) free() error {
	r.data = nil
	return nil
}

func adviseHugePages([]byte) error {
	return api.ErrNotSupported
}
