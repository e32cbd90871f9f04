package observe

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ehrlich-b/ft/internal/model"
	"github.com/ehrlich-b/ft/internal/pattern"
	"github.com/ehrlich-b/ft/internal/storage"
)

type fakeDetector struct {
	events []model.DetectionEvent
}

func (f *fakeDetector) Detect(ctx pattern.Context, content []byte, segmentID int64, nowMS int64) ([]model.DetectionEvent, error) {
	return f.events, nil
}
func (f *fakeDetector) NewContext(paneID uint64) pattern.Context { return pattern.Context{PaneID: paneID} }

func TestPersistenceHandlePersistsSegmentAndPublishes(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "ft.db"))
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer store.Close()

	if err := store.UpsertPane(model.Pane{ID: 1, UUID: "u1"}); err != nil {
		t.Fatalf("UpsertPane: %v", err)
	}

	registry := NewPaneRegistry()
	registry.SetCursor(1, 0)

	bus := NewBus()
	events := bus.Subscribe(4)

	p := &Persistence{
		In:        nil,
		Store:     store,
		Registry:  registry,
		Detector:  &fakeDetector{},
		Bus:       bus,
		IngestLag: NewPercentileWindow(),
		Segments:  NewShardedCounter(),
	}

	p.handle(IngressSegment{Pane: model.CapturedSegment{PaneID: 1, Seq: 0, CapturedAtMS: time.Now().UnixMilli(), Content: []byte("hello")}})

	if p.Segments.Sum() != 1 {
		t.Fatalf("expected 1 segment persisted, got %d", p.Segments.Sum())
	}

	select {
	case ev := <-events:
		if ev.Kind != EventSegmentCaptured || ev.PaneID != 1 {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatalf("expected a SegmentCaptured event to have been published")
	}
}

func TestPersistenceRunStopsWhenInClosed(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "ft.db"))
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer store.Close()

	in := make(chan IngressSegment)
	close(in)

	p := &Persistence{In: in, Store: store, Registry: NewPaneRegistry(), Bus: NewBus()}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
