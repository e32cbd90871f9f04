package reflow

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// ColdScrollbackWorker rewraps ClassColdScrollback batches off the hot
// resize path. It tracks a single active intent at a time: starting a
// new intent cancels whatever the worker was doing before, per spec
// §4.2 ("Tracks one active intent (seqno) at a time; starting a new
// intent before the old drains cancels it"). Lifecycle is grounded on
// internal/daemon.Run's context.WithCancel + goroutine + channel
// pattern.
type ColdScrollbackWorker struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	seqno  int64

	backlog      int64
	peakBacklog  int64
	cancellations int64
	linesDone     int64
	started       time.Time
}

// NewColdScrollbackWorker returns an idle worker.
func NewColdScrollbackWorker() *ColdScrollbackWorker {
	return &ColdScrollbackWorker{}
}

// RewrapFunc performs the actual wrap work for one batch, returning
// early if ctx is cancelled.
type RewrapFunc func(ctx context.Context, batch Batch) error

// Start begins a new intent, cancelling any intent currently in
// flight. The returned seqno identifies this intent for StartResult
// reporting.
func (w *ColdScrollbackWorker) Start(ctx context.Context, batches []Batch, rewrap RewrapFunc) int64 {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancellations++
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.seqno++
	seqno := w.seqno
	w.backlog = int64(len(batches))
	if w.backlog > w.peakBacklog {
		w.peakBacklog = w.backlog
	}
	w.started = time.Now()
	w.mu.Unlock()

	go w.run(runCtx, seqno, batches, rewrap)
	return seqno
}

func (w *ColdScrollbackWorker) run(ctx context.Context, seqno int64, batches []Batch, rewrap RewrapFunc) {
	for _, b := range batches {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := rewrap(ctx, b); err != nil {
			return
		}
		w.mu.Lock()
		if w.seqno == seqno {
			w.backlog -= int64(b.Len())
			if w.backlog < 0 {
				w.backlog = 0
			}
		}
		atomic.AddInt64(&w.linesDone, int64(b.Len()))
		w.mu.Unlock()
	}
	w.mu.Lock()
	if w.seqno == seqno {
		w.cancel = nil
	}
	w.mu.Unlock()
}

// Metrics is the cold-scrollback worker's reported state (spec §4.2:
// "backlog depth, peak depth, throughput (lines/sec), and cancellation
// count").
type Metrics struct {
	BacklogDepth   int64
	PeakDepth      int64
	Cancellations  int64
	ThroughputLPS  float64
}

// Snapshot returns the worker's current metrics.
func (w *ColdScrollbackWorker) Snapshot() Metrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	elapsed := time.Since(w.started).Seconds()
	var throughput float64
	if elapsed > 0 {
		throughput = float64(atomic.LoadInt64(&w.linesDone)) / elapsed
	}
	return Metrics{
		BacklogDepth:  w.backlog,
		PeakDepth:     w.peakBacklog,
		Cancellations: w.cancellations,
		ThroughputLPS: throughput,
	}
}

// Stop cancels any in-flight intent without starting a new one.
func (w *ColdScrollbackWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}
