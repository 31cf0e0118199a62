// File: control/metrics.go
// Package control
// License: Apache-2.0
//
// Runtime metrics collector for per-connection and process-level
// counters. Exposes a thread-safe map with dynamic registration,
// shaped the way a Prometheus exporter would read it (flat string keys,
// numeric values) without importing a metrics client — no SPEC_FULL.md
// component needs push/scrape wiring, only a snapshot.

package control

import (
	"sync"
	"time"
)

// MetricsRegistry holds mutable and read-only metrics.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]any
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]any),
	}
}

// Set sets or updates a metric key.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Add accumulates a signed delta onto an int64 counter, creating it at
// zero if unseen. This is what IOCOM.SetMetricsHook drives to track the
// per-connection open-transaction count (spec.md §9 "Global state",
// scoped to the connection instead of the whole process).
func (mr *MetricsRegistry) Add(key string, delta int64) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	cur, _ := mr.metrics[key].(int64)
	mr.metrics[key] = cur + delta
	mr.updated = time.Now()
}

// GetSnapshot returns the latest metrics.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}
