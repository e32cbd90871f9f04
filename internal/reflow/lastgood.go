package reflow

import (
	"sync"

	"github.com/ehrlich-b/ft/internal/model"
)

// RollbackRecord is emitted whenever a post-resize validity check fails
// and the engine restores the pre-resize snapshot (spec §4.2: "records
// a rollback with {cause, lineage_id} telemetry").
type RollbackRecord struct {
	Cause     string
	LineageID string
}

// LastGoodFrameStore snapshots a screen's visible viewport at resize
// boundaries and restores it on rollback, bounded by
// model.ByteBudget(rows, cols).
type LastGoodFrameStore struct {
	mu sync.Mutex

	snapshot *model.LastGoodFrame

	retainedBytes            int64
	peakBytes                int64
	invalidationCount        int64
	dropOverBudgetCount      int64
	rollbackCount            int64
	missingSnapshotRollback  int64
}

// NewLastGoodFrameStore returns an empty store.
func NewLastGoodFrameStore() *LastGoodFrameStore {
	return &LastGoodFrameStore{}
}

// Snapshot captures the visible viewport if its estimated size fits the
// byte budget (rows*cols*CellSizeBytes*4). Oversized viewports are
// silently dropped (counted), per spec §4.2/§3.
func (s *LastGoodFrameStore) Snapshot(lines []model.Line, rows, cols int, dpi float64, seqno int64, lineageID string) {
	budget := model.ByteBudget(rows, cols)
	estimated := estimateBytes(lines)

	s.mu.Lock()
	defer s.mu.Unlock()
	if estimated > budget {
		s.dropOverBudgetCount++
		return
	}
	cells := make([][]model.Cell, len(lines))
	for i, l := range lines {
		cc := make([]model.Cell, len(l.Cells))
		copy(cc, l.Cells)
		cells[i] = cc
	}
	s.snapshot = &model.LastGoodFrame{
		Cells:           cells,
		Rows:            rows,
		Cols:            cols,
		DPI:             dpi,
		LayoutSignature: LayoutSignature(lines),
		Seqno:           seqno,
		EstimatedBytes:  estimated,
		LineageID:       lineageID,
	}
	s.retainedBytes = estimated
	if estimated > s.peakBytes {
		s.peakBytes = estimated
	}
}

// Invalidate drops the current snapshot, called on content mutations
// and scrollback-erase events.
func (s *LastGoodFrameStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot != nil {
		s.snapshot = nil
		s.retainedBytes = 0
		s.invalidationCount++
	}
}

// Rollback returns the last good frame (and records the rollback) or
// reports that no snapshot was available (a missing-snapshot rollback,
// tracked separately per spec §4.2).
func (s *LastGoodFrameStore) Rollback(cause string) (*model.LastGoodFrame, RollbackRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		s.missingSnapshotRollback++
		return nil, RollbackRecord{}, false
	}
	s.rollbackCount++
	rec := RollbackRecord{Cause: cause, LineageID: s.snapshot.LineageID}
	return s.snapshot, rec, true
}

// LastGoodMetrics reports the store's telemetry counters.
type LastGoodMetrics struct {
	RetainedBytes           int64
	PeakBytes               int64
	InvalidationCount       int64
	DropOverBudgetCount     int64
	RollbackCount           int64
	MissingSnapshotRollback int64
}

// Metrics returns a snapshot of the store's counters.
func (s *LastGoodFrameStore) Metrics() LastGoodMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LastGoodMetrics{
		RetainedBytes:           s.retainedBytes,
		PeakBytes:               s.peakBytes,
		InvalidationCount:       s.invalidationCount,
		DropOverBudgetCount:     s.dropOverBudgetCount,
		RollbackCount:           s.rollbackCount,
		MissingSnapshotRollback: s.missingSnapshotRollback,
	}
}

func estimateBytes(lines []model.Line) int64 {
	var total int64
	for _, l := range lines {
		total += int64(len(l.Cells)) * model.CellSizeBytes
	}
	return total
}
