package observe

import "time"

// BackpressureTier reports how close the capture/storage queues are to
// capacity (spec §5: "A warn threshold of 0.75 produces a health
// warning").
type BackpressureTier string

const (
	BackpressureNormal BackpressureTier = "normal"
	BackpressureWarn   BackpressureTier = "warn"
)

// backpressureWarnThreshold is the queue-depth/capacity ratio above
// which a health warning is raised.
const backpressureWarnThreshold = 0.75

// ResizeWatchdogStatus classifies scheduler stall severity (spec §4.1).
type ResizeWatchdogStatus string

const (
	WatchdogHealthy        ResizeWatchdogStatus = "healthy"
	WatchdogWarning        ResizeWatchdogStatus = "warning"
	WatchdogCritical       ResizeWatchdogStatus = "critical"
	WatchdogSafeModeActive ResizeWatchdogStatus = "safe_mode_active"
)

const (
	watchdogWarnThreshold     = 2000 * time.Millisecond
	watchdogCriticalThreshold = 8000 * time.Millisecond
	safeModeCriticalCount     = 2
)

// ResizeWatchdog classifies scheduler stalls by elapsed time since the
// last successful scheduler tick, escalating to SafeModeActive once it
// has observed >= 2 critical stalls (spec §4.1/§5).
type ResizeWatchdog struct {
	criticalStreak int
}

// Classify reports the watchdog's status for a stall of the given
// duration, updating the internal critical-streak counter.
func (w *ResizeWatchdog) Classify(stall time.Duration) ResizeWatchdogStatus {
	switch {
	case stall >= watchdogCriticalThreshold:
		w.criticalStreak++
		if w.criticalStreak >= safeModeCriticalCount {
			return WatchdogSafeModeActive
		}
		return WatchdogCritical
	case stall >= watchdogWarnThreshold:
		w.criticalStreak = 0
		return WatchdogWarning
	default:
		w.criticalStreak = 0
		return WatchdogHealthy
	}
}

// HealthSnapshot is the runtime's published telemetry, assembled every
// 30s (spec §4.1).
type HealthSnapshot struct {
	ObservedPanes        int
	QueueDepths          map[string]int
	LastSeqByPane        map[uint64]int64
	IngestLagP50         float64
	IngestLagP95         float64
	StorageLockWaitP50   float64
	StorageLockWaitP95   float64
	StorageLockHoldP50   float64
	StorageLockHoldP95   float64
	CursorSnapshotBytesP50 float64
	CursorSnapshotBytesP95 float64
	BackpressureTier     BackpressureTier
	ResizeWatchdog       ResizeWatchdogStatus
	DatabaseWritable     bool
	LastWriteAtMS        int64
	Warnings             []string
}

// Storage lock wait/hold warning thresholds (spec §4.1: "15ms wait,
// 75ms hold").
const (
	storageLockWaitWarnMS = 15.0
	storageLockHoldWarnMS = 75.0
)

// StorageLockWarnings returns the warnings a health snapshot should
// surface given the current p95 wait/hold samples.
func StorageLockWarnings(waitP95MS, holdP95MS float64) []string {
	var warnings []string
	if waitP95MS > storageLockWaitWarnMS {
		warnings = append(warnings, "storage lock wait p95 exceeds 15ms")
	}
	if holdP95MS > storageLockHoldWarnMS {
		warnings = append(warnings, "storage lock hold p95 exceeds 75ms")
	}
	return warnings
}

// QueueBackpressure computes the tier for a queue at depth/capacity.
func QueueBackpressure(depth, capacity int) BackpressureTier {
	if capacity <= 0 {
		return BackpressureNormal
	}
	if float64(depth)/float64(capacity) >= backpressureWarnThreshold {
		return BackpressureWarn
	}
	return BackpressureNormal
}

// Collector assembles HealthSnapshots from the runtime's live state.
type Collector struct {
	Registry           *PaneRegistry
	Store              storageHandle
	IngestLag          *PercentileWindow
	StorageLockWait    *PercentileWindow
	StorageLockHold    *PercentileWindow
	CursorSnapshotBytes *PercentileWindow
	Watchdog           *ResizeWatchdog

	QueueDepth, QueueCapacity func() (int, int)
	LastStallDuration         func() time.Duration
	Warnings                  func() []string
}

// storageHandle is the subset of storage.Handle the collector needs,
// kept narrow so tests can fake it without a real database.
type storageHandle interface {
	IsWritable() bool
	WriteQueueDepth() int
	WriteQueueCapacity() int
}

// Snapshot assembles a HealthSnapshot from the collector's live state.
func (c *Collector) Snapshot() HealthSnapshot {
	var tier BackpressureTier
	var depth, cap int
	if c.QueueDepth != nil && c.QueueCapacity != nil {
		depth, cap = c.QueueDepth()
	} else if c.Store != nil {
		depth, cap = c.Store.WriteQueueDepth(), c.Store.WriteQueueCapacity()
	}
	tier = QueueBackpressure(depth, cap)

	watchdogStatus := WatchdogHealthy
	if c.Watchdog != nil && c.LastStallDuration != nil {
		watchdogStatus = c.Watchdog.Classify(c.LastStallDuration())
	}

	var warnings []string
	if c.Warnings != nil {
		warnings = c.Warnings()
	}

	snap := HealthSnapshot{
		QueueDepths:      map[string]int{"write_queue": depth},
		BackpressureTier: tier,
		ResizeWatchdog:   watchdogStatus,
		Warnings:         warnings,
		LastWriteAtMS:    time.Now().UnixMilli(),
	}
	if c.Store != nil {
		snap.DatabaseWritable = c.Store.IsWritable()
	}
	if c.Registry != nil {
		panes := c.Registry.Snapshot()
		snap.ObservedPanes = len(panes)
		snap.LastSeqByPane = make(map[uint64]int64, len(panes))
		for _, p := range panes {
			snap.LastSeqByPane[p.ID] = c.Registry.Cursor(p.ID)
		}
	}
	if c.IngestLag != nil {
		snap.IngestLagP50, snap.IngestLagP95 = c.IngestLag.P50(), c.IngestLag.P95()
	}
	if c.StorageLockWait != nil {
		snap.StorageLockWaitP50, snap.StorageLockWaitP95 = c.StorageLockWait.P50(), c.StorageLockWait.P95()
	}
	if c.StorageLockHold != nil {
		snap.StorageLockHoldP50, snap.StorageLockHoldP95 = c.StorageLockHold.P50(), c.StorageLockHold.P95()
	}
	snap.Warnings = append(snap.Warnings, StorageLockWarnings(snap.StorageLockWaitP95, snap.StorageLockHoldP95)...)
	if c.CursorSnapshotBytes != nil {
		snap.CursorSnapshotBytesP50, snap.CursorSnapshotBytesP95 = c.CursorSnapshotBytes.P50(), c.CursorSnapshotBytes.P95()
	}
	return snap
}
