package mux

import (
	"sync"
	"time"
)

// Coalescer defaults grounded on original_source/runtime.rs's
// NATIVE_OUTPUT_COALESCE_WINDOW_MS/MAX_DELAY_MS/MAX_BYTES constants.
const (
	DefaultCoalesceWindow   = 50 * time.Millisecond
	DefaultCoalesceMaxDelay = 200 * time.Millisecond
	DefaultCoalesceMaxBytes = 256 * 1024
)

// CoalescerConfig tunes one pane's native-output coalescing window.
type CoalescerConfig struct {
	Window   time.Duration
	MaxDelay time.Duration
	MaxBytes int
}

// DefaultCoalescerConfig returns the spec's documented defaults.
func DefaultCoalescerConfig() CoalescerConfig {
	return CoalescerConfig{Window: DefaultCoalesceWindow, MaxDelay: DefaultCoalesceMaxDelay, MaxBytes: DefaultCoalesceMaxBytes}
}

// CoalescerMetrics accumulates per-pane coalescing telemetry, a
// supplemented capture-path surface from original_source/runtime.rs not
// explicit in spec.md but in scope since no Non-goal excludes it.
type CoalescerMetrics struct {
	InputBytes   int64
	EmittedBytes int64
	InputEvents  int64
	EmittedBatches int64
	MaxBatchBytes int
}

// NativeOutputCoalescer buffers high-rate PaneOutput events for one pane,
// flushing a batch when the quiet window elapses, the max-delay deadline
// is reached, or the byte budget would be exceeded. Owned by the
// listener task only (spec §5 "per-pane coalescer state").
type NativeOutputCoalescer struct {
	cfg CoalescerConfig

	mu         sync.Mutex
	buf        []byte
	firstWrite time.Time
	timer      *time.Timer
	metrics    CoalescerMetrics
	flush      func([]byte)
}

// NewNativeOutputCoalescer creates a coalescer that calls flush whenever
// a batch is ready. flush must not block.
func NewNativeOutputCoalescer(cfg CoalescerConfig, flush func([]byte)) *NativeOutputCoalescer {
	if cfg.Window <= 0 {
		cfg = DefaultCoalescerConfig()
	}
	return &NativeOutputCoalescer{cfg: cfg, flush: flush}
}

// Write appends output bytes, flushing immediately if the byte budget
// would otherwise be exceeded, and (re)arming the quiet-window timer.
func (c *NativeOutputCoalescer) Write(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.InputBytes += int64(len(p))
	c.metrics.InputEvents++

	if len(c.buf) == 0 {
		c.firstWrite = time.Now()
	}

	if len(c.buf)+len(p) > c.cfg.MaxBytes {
		c.flushLocked()
		c.firstWrite = time.Now()
	}

	c.buf = append(c.buf, p...)

	if time.Since(c.firstWrite) >= c.cfg.MaxDelay {
		c.flushLocked()
		return
	}

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.cfg.Window, c.Flush)
}

// Flush emits the current buffer (if any) to the configured callback.
func (c *NativeOutputCoalescer) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

func (c *NativeOutputCoalescer) flushLocked() {
	if len(c.buf) == 0 {
		return
	}
	batch := c.buf
	c.buf = nil
	c.metrics.EmittedBytes += int64(len(batch))
	c.metrics.EmittedBatches++
	if len(batch) > c.metrics.MaxBatchBytes {
		c.metrics.MaxBatchBytes = len(batch)
	}
	c.flush(batch)
}

// Metrics returns a snapshot of accumulated coalescing telemetry.
func (c *NativeOutputCoalescer) Metrics() CoalescerMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}
