package observe

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehrlich-b/ft/internal/model"
	"github.com/ehrlich-b/ft/internal/mux"
	"github.com/ehrlich-b/ft/internal/pattern"
	"github.com/ehrlich-b/ft/internal/storage"
)

// PaneRegistry tracks the panes the discovery stage has seen, their
// cursors, and their detection contexts, guarded by a read-write lock
// per spec §5 ("Pane registry and cursor maps: read-write locks").
type PaneRegistry struct {
	mu       sync.RWMutex
	panes    map[uint64]*model.Pane
	cursors  map[uint64]int64
	contexts map[uint64]pattern.Context
}

// NewPaneRegistry returns an empty registry.
func NewPaneRegistry() *PaneRegistry {
	return &PaneRegistry{
		panes:    make(map[uint64]*model.Pane),
		cursors:  make(map[uint64]int64),
		contexts: make(map[uint64]pattern.Context),
	}
}

// Snapshot returns a copy of every currently tracked pane.
func (r *PaneRegistry) Snapshot() []*model.Pane {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Pane, 0, len(r.panes))
	for _, p := range r.panes {
		out = append(out, p)
	}
	return out
}

// Cursor returns the next expected sequence number for a pane.
func (r *PaneRegistry) Cursor(paneID uint64) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cursors[paneID]
}

// SetCursor updates a pane's cursor, called by discovery on first sight
// and by persistence on resync.
func (r *PaneRegistry) SetCursor(paneID uint64, seq int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursors[paneID] = seq
}

// Context returns the pane's detection context, clearing happens
// separately via ClearContext on a detected gap (spec §4.1 step 4d).
func (r *PaneRegistry) Context(paneID uint64) pattern.Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.contexts[paneID]
}

// ClearContext resets a pane's detection context across a capture gap.
func (r *PaneRegistry) ClearContext(paneID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts[paneID] = pattern.Context{PaneID: paneID}
}

// DiscoveryResult reports what one discovery tick found.
type DiscoveryResult struct {
	New     []model.Pane
	Closed  []uint64
	Errored bool
}

// Discovery polls client.Discover() on an interval, diffs against the
// registry, persists new panes, and seeds their cursor from the
// store's max seq. Grounded on internal/timeline/loop.go's ticker loop.
type Discovery struct {
	Client   mux.Client
	Store    storage.Handle
	Registry *PaneRegistry
	Interval time.Duration
	Logger   *slog.Logger
}

// Run polls until ctx is cancelled, per spec §4.1 step 1 and §5's
// "Discovery: sleep (100ms shutdown-responsive slices)".
func (d *Discovery) Run(ctx context.Context) error {
	if d.Interval <= 0 {
		d.Interval = 5 * time.Second
	}
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.tick(ctx); err != nil {
				d.logger().Warn("discovery tick failed", "error", err)
			}
		}
	}
}

func (d *Discovery) tick(ctx context.Context) error {
	discovered, err := d.Client.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover panes: %w", err)
	}

	seen := make(map[uint64]bool, len(discovered))
	for _, dp := range discovered {
		seen[dp.ID] = true
		if existing := d.Registry.Snapshot(); containsPane(existing, dp.ID) {
			continue
		}

		now := time.Now().UnixMilli()
		pane := model.Pane{ID: dp.ID, UUID: uuid.NewString(), OriginDomain: dp.OriginDomain, Observed: true, FirstSeenMS: now, LastSeenMS: now}
		if err := d.Store.UpsertPane(pane); err != nil {
			return fmt.Errorf("upsert pane %d: %w", dp.ID, err)
		}
		maxSeq, hasMax, err := d.Store.GetMaxSeq(dp.ID)
		if err != nil {
			return fmt.Errorf("get max seq for pane %d: %w", dp.ID, err)
		}
		nextSeq := int64(0)
		if hasMax {
			nextSeq = maxSeq + 1
		}

		d.Registry.mu.Lock()
		d.Registry.panes[dp.ID] = &pane
		d.Registry.cursors[dp.ID] = nextSeq
		d.Registry.contexts[dp.ID] = pattern.Context{PaneID: dp.ID}
		d.Registry.mu.Unlock()
	}

	return nil
}

func containsPane(panes []*model.Pane, id uint64) bool {
	for _, p := range panes {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (d *Discovery) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
