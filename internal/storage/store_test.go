package storage

import (
	"path/filepath"
	"testing"

	"github.com/ehrlich-b/ft/internal/model"
)

func openTestHandle(t *testing.T) *SQLiteHandle {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "ft.db")
	h, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestUpsertPaneAndSegmentSeqMonotonic(t *testing.T) {
	h := openTestHandle(t)

	if err := h.UpsertPane(model.Pane{ID: 1, UUID: "u1", OriginDomain: "local", Observed: true, FirstSeenMS: 1, LastSeenMS: 1}); err != nil {
		t.Fatalf("UpsertPane: %v", err)
	}

	for seq := int64(1); seq <= 3; seq++ {
		res, err := h.PersistSegment(model.CapturedSegment{PaneID: 1, Seq: seq, CapturedAtMS: seq, Content: []byte("x")})
		if err != nil {
			t.Fatalf("PersistSegment(seq=%d): %v", seq, err)
		}
		if res.Gap != nil {
			t.Fatalf("unexpected gap at seq=%d: %+v", seq, res.Gap)
		}
	}

	maxSeq, ok, err := h.GetMaxSeq(1)
	if err != nil || !ok || maxSeq != 3 {
		t.Fatalf("GetMaxSeq = %d, %v, %v; want 3, true, nil", maxSeq, ok, err)
	}
}

func TestPersistSegmentDetectsGap(t *testing.T) {
	h := openTestHandle(t)
	if err := h.UpsertPane(model.Pane{ID: 7, UUID: "u7", FirstSeenMS: 1, LastSeenMS: 1}); err != nil {
		t.Fatalf("UpsertPane: %v", err)
	}
	if _, err := h.PersistSegment(model.CapturedSegment{PaneID: 7, Seq: 1, CapturedAtMS: 1, Content: []byte("a")}); err != nil {
		t.Fatalf("seed segment: %v", err)
	}
	res, err := h.PersistSegment(model.CapturedSegment{PaneID: 7, Seq: 5, CapturedAtMS: 2, Content: []byte("b")})
	if err != nil {
		t.Fatalf("PersistSegment: %v", err)
	}
	if res.Gap == nil || res.Gap.Seq != 2 {
		t.Fatalf("expected a resync gap starting at seq 2, got %+v", res.Gap)
	}
}

func TestRecordEventDedup(t *testing.T) {
	h := openTestHandle(t)
	if err := h.UpsertPane(model.Pane{ID: 1, UUID: "u1", FirstSeenMS: 1, LastSeenMS: 1}); err != nil {
		t.Fatalf("UpsertPane: %v", err)
	}
	e := model.DetectionEvent{PaneID: 1, RuleID: "r1", EventType: "oom", Severity: model.SeverityCritical, Confidence: 0.9, DetectedAtMS: 1000}
	id1, err := h.RecordEvent(e)
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if id1 == 0 {
		t.Fatalf("expected nonzero event id")
	}
	// Same dedupe bucket: second insert must be a no-op, not an error.
	e2 := e
	e2.DetectedAtMS = 1500
	if _, err := h.RecordEvent(e2); err != nil {
		t.Fatalf("duplicate RecordEvent must not error: %v", err)
	}

	var count int
	if err := h.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one surviving event for the dedupe key, got %d", count)
	}
}

func TestCheckpointMonotonic(t *testing.T) {
	h := openTestHandle(t)
	cp1 := model.RecorderCheckpoint{ConsumerID: "tantivy-lexical-v1", UptoOffset: 100, SchemaVersion: "v1", CommittedAtMS: 1}
	if err := h.CommitCheckpoint(cp1); err != nil {
		t.Fatalf("CommitCheckpoint: %v", err)
	}
	got, ok, err := h.ReadCheckpoint("tantivy-lexical-v1")
	if err != nil || !ok || got.UptoOffset != 100 {
		t.Fatalf("ReadCheckpoint = %+v, %v, %v", got, ok, err)
	}

	backward := cp1
	backward.UptoOffset = 50
	if err := h.CommitCheckpoint(backward); err == nil {
		t.Fatalf("expected backward checkpoint commit to be refused")
	}

	forward := cp1
	forward.UptoOffset = 200
	if err := h.CommitCheckpoint(forward); err != nil {
		t.Fatalf("forward checkpoint commit must succeed: %v", err)
	}
}
