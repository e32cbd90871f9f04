package observe

import (
	"context"
	"log/slog"
	"time"

	"github.com/ehrlich-b/ft/internal/pattern"
	"github.com/ehrlich-b/ft/internal/storage"
)

// Persistence is the pipeline's terminal stage: it persists each
// segment, resyncs the pane's cursor on a gap, runs pattern detection,
// persists detections, and publishes the three event-bus events (spec
// §4.1 step 4).
type Persistence struct {
	In       <-chan IngressSegment
	Store    storage.Handle
	Registry *PaneRegistry
	Detector pattern.Engine
	Bus      *Bus
	Logger   *slog.Logger

	IngestLag *PercentileWindow
	Segments  *ShardedCounter
}

// Run consumes In until it is closed or ctx is cancelled.
func (p *Persistence) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case seg, ok := <-p.In:
			if !ok {
				return nil
			}
			p.handle(seg)
		}
	}
}

func (p *Persistence) handle(in IngressSegment) {
	result, err := p.Store.PersistSegment(in.Pane)
	if err != nil {
		p.logger().Warn("persist segment failed", "pane_id", in.Pane.PaneID, "error", err)
		return
	}
	if p.Segments != nil {
		p.Segments.Add(1)
	}
	if p.IngestLag != nil {
		p.IngestLag.Observe(float64(nowMillis() - result.Segment.CapturedAtMS))
	}

	if result.Gap != nil {
		p.Registry.SetCursor(result.Segment.PaneID, result.Segment.Seq)
		p.Registry.ClearContext(result.Segment.PaneID)
		p.Bus.Publish(Event{Kind: EventGapDetected, PaneID: result.Segment.PaneID, Seq: result.Gap.Seq})
	}
	p.Bus.Publish(Event{Kind: EventSegmentCaptured, PaneID: result.Segment.PaneID, Seq: result.Segment.Seq})

	if result.Segment.IsGap() || p.Detector == nil {
		return
	}

	detCtx := p.Registry.Context(result.Segment.PaneID)
	events, err := p.Detector.Detect(detCtx, result.Segment.Content, result.Segment.Seq, nowMillis())
	if err != nil {
		p.logger().Warn("pattern detection failed", "pane_id", result.Segment.PaneID, "error", err)
		return
	}
	for _, ev := range events {
		eventID, err := p.Store.RecordEvent(ev)
		if err != nil {
			p.logger().Warn("record detection event failed", "pane_id", result.Segment.PaneID, "error", err)
			continue
		}
		_ = eventID
		p.Bus.Publish(Event{Kind: EventPatternDetected, PaneID: result.Segment.PaneID, Seq: result.Segment.Seq})
	}
}

func (p *Persistence) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func nowMillis() int64 { return time.Now().UnixMilli() }
