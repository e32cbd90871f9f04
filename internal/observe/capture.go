package observe

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ehrlich-b/ft/internal/model"
	"github.com/ehrlich-b/ft/internal/mux"
)

// IngressSegment is what Capture hands to Relay: a captured delta plus
// enough context for persistence to resync the cursor if needed.
type IngressSegment struct {
	Pane model.CapturedSegment
}

// Capture manages per-pane tailers, polling each adaptively between
// min/max intervals with exponential backoff, bounded by the scheduler's
// concurrency cap and per-pane token buckets (spec §4.1 step 2).
type Capture struct {
	Client    mux.Client
	Registry  *PaneRegistry
	Scheduler Scheduler
	Out       chan<- IngressSegment
	Logger    *slog.Logger

	MinInterval, MaxInterval time.Duration
	BackoffFactor            float64
	CapturesPerSec           float64
	BytesPerSec              float64

	mu      sync.Mutex
	tailers map[uint64]*trackedTailer
}

type trackedTailer struct {
	state  *TailerState
	tailer mux.Tailer
}

// NewCapture returns a Capture wired to emit into out.
func NewCapture(client mux.Client, registry *PaneRegistry, out chan<- IngressSegment) *Capture {
	return &Capture{
		Client:         client,
		Registry:       registry,
		Out:            out,
		MinInterval:    50 * time.Millisecond,
		MaxInterval:    200 * time.Millisecond,
		BackoffFactor:  1.5,
		CapturesPerSec: 20,
		BytesPerSec:    1 << 20,
		tailers:        make(map[uint64]*trackedTailer),
	}
}

// Run ticks the scheduler on MinInterval/2 cadence until ctx is
// cancelled, adopting any newly-discovered pane and retiring closed
// ones on each pass.
func (c *Capture) Run(ctx context.Context) error {
	tick := c.MinInterval / 2
	if tick <= 0 {
		tick = 25 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.closeAll()
			return ctx.Err()
		case now := <-ticker.C:
			c.reconcile(ctx)
			c.pollReady(ctx, now)
		}
	}
}

func (c *Capture) reconcile(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, pane := range c.Registry.Snapshot() {
		if _, ok := c.tailers[pane.ID]; ok {
			continue
		}
		tailer, err := c.Client.OpenTailer(ctx, pane.ID)
		if err != nil {
			c.logger().Warn("open tailer failed", "pane_id", pane.ID, "error", err)
			continue
		}
		priority := 0
		if pane.Priority != nil && !pane.Priority.Expired(time.Now()) {
			priority = pane.Priority.Value
		}
		c.tailers[pane.ID] = &trackedTailer{
			state:  NewTailerState(pane.ID, priority, c.MinInterval, c.MaxInterval, c.BackoffFactor, c.CapturesPerSec, c.BytesPerSec),
			tailer: tailer,
		}
	}
}

func (c *Capture) pollReady(ctx context.Context, now time.Time) {
	c.mu.Lock()
	states := make([]*TailerState, 0, len(c.tailers))
	for _, t := range c.tailers {
		states = append(states, t.state)
	}
	c.mu.Unlock()

	ready := c.Scheduler.Select(states, now)
	for _, st := range ready {
		c.mu.Lock()
		tt, ok := c.tailers[st.PaneID]
		c.mu.Unlock()
		if !ok {
			continue
		}
		c.pollOne(ctx, tt)
	}
}

func (c *Capture) pollOne(ctx context.Context, tt *trackedTailer) {
	delta, gapReason, err := tt.tailer.Poll(ctx)
	now := time.Now()
	if err != nil {
		c.logger().Warn("tailer poll failed", "pane_id", tt.tailer.PaneID(), "error", err)
		tt.state.OnNoDelta(now)
		return
	}
	if len(delta) == 0 && gapReason == model.GapReasonNone {
		tt.state.OnNoDelta(now)
		return
	}
	if !tt.state.HasBudget(len(delta)) {
		tt.state.OnNoDelta(now)
		return
	}

	seq := c.Registry.Cursor(tt.tailer.PaneID())
	seg := model.CapturedSegment{
		PaneID:       tt.tailer.PaneID(),
		Seq:          seq,
		CapturedAtMS: now.UnixMilli(),
		Content:      delta,
		GapReason:    gapReason,
	}
	c.Registry.SetCursor(tt.tailer.PaneID(), seq+1)

	select {
	case c.Out <- IngressSegment{Pane: seg}:
		tt.state.OnDelta(now)
	case <-ctx.Done():
	}
}

func (c *Capture) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tt := range c.tailers {
		_ = tt.tailer.Close()
	}
}

func (c *Capture) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
