// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for copybench.
// Allocates the source/destination BufferPair as page-aligned anonymous mappings,
// optionally 2 MiB aligned and advised for transparent huge pages.
// See bufferpair.go for the pair itself and region_*.go for the platform backends.
package pool
