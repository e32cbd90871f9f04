package reflow

import (
	"testing"

	"github.com/ehrlich-b/ft/internal/model"
)

func smallLines(rows, cols int) []model.Line {
	out := make([]model.Line, rows)
	for i := range out {
		cells := make([]model.Cell, cols)
		for j := range cells {
			cells[j] = model.Cell{Grapheme: "x", Width: 1}
		}
		out[i] = model.Line{Cells: cells}
	}
	return out
}

func TestSnapshotWithinBudgetIsRetained(t *testing.T) {
	s := NewLastGoodFrameStore()
	s.Snapshot(smallLines(5, 10), 5, 10, 1.0, 1, "lineage-1")
	snap, _, ok := s.Rollback("test")
	if !ok {
		t.Fatalf("expected a snapshot to be available for rollback")
	}
	if snap.LineageID != "lineage-1" {
		t.Fatalf("unexpected lineage id %q", snap.LineageID)
	}
}

func TestSnapshotOverBudgetIsDropped(t *testing.T) {
	s := NewLastGoodFrameStore()
	// rows*cols*32*4 budget is tiny for 1x1; a 10000-row screen blows it.
	s.Snapshot(smallLines(10000, 10000), 1, 1, 1.0, 1, "lineage-2")
	if _, _, ok := s.Rollback("test"); ok {
		t.Fatalf("expected an over-budget snapshot to have been dropped")
	}
	if s.Metrics().DropOverBudgetCount != 1 {
		t.Fatalf("expected drop_over_budget_count incremented")
	}
}

func TestRollbackWithoutSnapshotCountsMissing(t *testing.T) {
	s := NewLastGoodFrameStore()
	if _, _, ok := s.Rollback("no snapshot"); ok {
		t.Fatalf("expected no snapshot to be available")
	}
	if s.Metrics().MissingSnapshotRollback != 1 {
		t.Fatalf("expected missing_snapshot_rollback incremented")
	}
}

func TestInvalidateClearsSnapshot(t *testing.T) {
	s := NewLastGoodFrameStore()
	s.Snapshot(smallLines(5, 10), 5, 10, 1.0, 1, "lineage-3")
	s.Invalidate()
	if _, _, ok := s.Rollback("after invalidate"); ok {
		t.Fatalf("expected the snapshot to be gone after Invalidate")
	}
}
