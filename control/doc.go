// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, runtime metrics and debug introspection layer for copybench.
//
// Provides:
//   - Command-line parsing and validation of a run configuration
//   - A concurrent-safe metrics registry the run publishes into
//   - Debug probe registration and state export
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
