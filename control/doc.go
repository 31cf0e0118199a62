// File: control/doc.go
// License: Apache-2.0

// Package control is dmsgcore's ambient stack: static and hot-reloadable
// configuration, per-connection metrics, debug probe registration, and
// the reload-hook plumbing facade and cmd/dmsgcored wire into the
// transaction engine.
//
// Provides concurrent-safe state handling primitives including:
//   - Immutable snapshot config reads and atomic updates
//   - Runtime observers for hot-reload
//   - Metrics telemetry (per-IOCOM state counters, Controller.Stats)
//   - Debug probe registration and export
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
