// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector for a benchmark run.
// Exposes counters in a thread-safe map with dynamic registration.

package control

import (
	"sync"
	"time"
)

// Metric keys published by a run.
const (
	MetricIterations     = "iterations.completed"
	MetricVerifyFailures = "iterations.verify_failures"
	MetricCopySeconds    = "copy.seconds_total"
	MetricLastGBps       = "copy.last_gbps"
	MetricBestGBps       = "copy.best_gbps"
	MetricResetSeconds   = "reset.seconds_total"
	MetricSourceFillSecs = "source.fill_seconds"
	MetricBufferBytes    = "buffer.bytes"
	MetricChunksPerIter  = "buffer.chunks"
	MetricChunksByAgent  = "pool.chunks_by_agent"
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

// Add accumulates delta onto a numeric metric, creating it at zero.
func (mr *MetricsRegistry) Add(key string, delta float64) float64 {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	v, _ := mr.metrics[key].(float64)
	v += delta
	mr.metrics[key] = v
	mr.updated = time.Now()
	return v
}

// Max keeps the larger of the stored value and v.
func (mr *MetricsRegistry) Max(key string, v float64) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if cur, ok := mr.metrics[key].(float64); ok && cur >= v {
		return
	}
	mr.metrics[key] = v
	mr.updated = time.Now()
}

// Get returns a single metric.
func (mr *MetricsRegistry) Get(key string) (any, bool) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	v, ok := mr.metrics[key]
	return v, ok
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

// Updated returns the time of the last write.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}
