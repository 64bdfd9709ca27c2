// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives of the chunked copy engine: a padded atomic chunk
// counter, the ChunkCopier that claims and copies chunks against it, and the
// SpinPool of persistent busy-spinning workers. Nothing here blocks on a
// channel or condition variable while an iteration is in flight.
package concurrency
