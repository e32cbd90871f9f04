// Package crashbundle writes bounded, redacted crash and incident
// bundles to disk and validates them offline. Grounded line-for-line on
// original_source/crates/wa-core/src/crash.rs, translated to the
// recover/defer idiom Go uses in place of a global panic hook.
package crashbundle

import "sync/atomic"

// HealthSnapshot is the runtime health view included in a crash report
// when one is available, periodically pushed by internal/observe's
// health collector. Mirrors crash.rs's HealthSnapshot field-for-field.
type HealthSnapshot struct {
	TimestampMS         int64            `json:"timestamp_ms"`
	ObservedPanes       int              `json:"observed_panes"`
	CaptureQueueDepth   int              `json:"capture_queue_depth"`
	WriteQueueDepth     int              `json:"write_queue_depth"`
	LastSeqByPane       map[uint64]int64 `json:"last_seq_by_pane"`
	Warnings            []string         `json:"warnings"`
	IngestLagAvgMS      float64          `json:"ingest_lag_avg_ms"`
	IngestLagMaxMS      int64            `json:"ingest_lag_max_ms"`
	DBWritable          bool             `json:"db_writable"`
	DBLastWriteAtMS     int64            `json:"db_last_write_at_ms,omitempty"`
	PanePriorityNotices []PriorityNotice `json:"pane_priority_overrides,omitempty"`
}

// PriorityNotice is the health-snapshot view of one operator-set pane
// priority override.
type PriorityNotice struct {
	PaneID    uint64 `json:"pane_id"`
	Priority  int    `json:"priority"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

var globalHealth atomic.Pointer[HealthSnapshot]

// UpdateGlobal stores the latest health snapshot for the panic hook to
// pick up, mirroring GLOBAL_HEALTH.update_global.
func UpdateGlobal(snap HealthSnapshot) {
	globalHealth.Store(&snap)
}

// GetGlobal returns the most recently stored health snapshot, if any.
func GetGlobal() (HealthSnapshot, bool) {
	p := globalHealth.Load()
	if p == nil {
		return HealthSnapshot{}, false
	}
	return *p, true
}
