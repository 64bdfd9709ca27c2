//go:build linux
// +build linux

// File: pool/region_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux anonymous mappings via mmap(2) and madvise(2).

package pool

import (
	"fmt"

	"golang.org/x/sys/unix"
)

type region struct {
	raw  []byte
	data []byte
}

// mapRegion maps size bytes aligned to align. Over-maps by align when the
// alignment exceeds the page size and slices the aligned window out.
func mapRegion(size, align int) (*region, error) {
	length := size
	if align > pageSize {
		length += align
	}
	raw, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", length, err)
	}
	off := alignOffset(raw, align)
	return &region{raw: raw, data: raw[off : off+size : off+size]}, nil
}

func (r *region) free() error {
	if r.raw == nil {
		return nil
	}
	err := unix.Munmap(r.raw)
	r.raw, r.data = nil, nil
	return err
}

func adviseHugePages(b []byte) error {
	if err := unix.Madvise(b, unix.MADV_HUGEPAGE); err != nil {
		return fmt.Errorf("madvise: %w", err)
	}
	return nil
}
