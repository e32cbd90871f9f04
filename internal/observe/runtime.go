package observe

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ehrlich-b/ft/internal/config"
	"github.com/ehrlich-b/ft/internal/mux"
	"github.com/ehrlich-b/ft/internal/pattern"
	"github.com/ehrlich-b/ft/internal/storage"
)

// Runtime wires the four pipeline stages together and drives them with
// an errgroup, consuming hot-reloaded configuration from
// config.Manager.Watch. Lifecycle grounded on internal/daemon.Run
// (teacher)'s context.WithCancel + goroutine-per-task + signal/error
// channel shutdown race.
type Runtime struct {
	Client   mux.Client
	Store    storage.Handle
	Detector pattern.Engine
	Config   *config.Manager
	Logger   *slog.Logger

	Registry *PaneRegistry
	Bus      *Bus

	IngestLag *PercentileWindow
	Segments  *ShardedCounter

	stop chan struct{}
}

// NewRuntime wires a Runtime from its collaborators.
func NewRuntime(client mux.Client, store storage.Handle, detector pattern.Engine, cfgMgr *config.Manager) *Runtime {
	return &Runtime{
		Client:    client,
		Store:     store,
		Detector:  detector,
		Config:    cfgMgr,
		Registry:  NewPaneRegistry(),
		Bus:       NewBus(),
		IngestLag: NewPercentileWindow(),
		Segments:  NewShardedCounter(),
		stop:      make(chan struct{}),
	}
}

// Run starts discovery, capture, relay, and persistence, returning when
// ctx is cancelled or a stage errors. Configuration changes are applied
// to the in-flight Capture/Discovery intervals on each tick via shared
// atomics rather than a stage restart, matching spec §4.1's
// "tasks re-borrow on each tick" hot-reload contract.
func (r *Runtime) Run(ctx context.Context) (ShutdownSummary, error) {
	cfg := r.Config.Get()
	started := time.Now()

	ingress := make(chan IngressSegment, 256)
	relayOut := make(chan IngressSegment, 256)

	discovery := &Discovery{Client: r.Client, Store: r.Store, Registry: r.Registry, Interval: cfg.DiscoveryInterval(), Logger: r.Logger}
	capture := NewCapture(r.Client, r.Registry, ingress)
	capture.MinInterval = cfg.MinCaptureInterval()
	capture.MaxInterval = cfg.CaptureInterval()
	capture.Scheduler = Scheduler{MaxConcurrent: cfg.MaxConcurrentTailers}
	capture.CapturesPerSec = cfg.PaneCapturesPerSec
	capture.BytesPerSec = cfg.PaneBytesPerSec
	capture.Logger = r.Logger

	relay := &Relay{In: ingress, Out: relayOut}
	persistence := &Persistence{
		In:        relayOut,
		Store:     r.Store,
		Registry:  r.Registry,
		Detector:  r.Detector,
		Bus:       r.Bus,
		Logger:    r.Logger,
		IngestLag: r.IngestLag,
		Segments:  r.Segments,
	}

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	reload, err := r.Config.Watch(stopWatch)
	if err == nil {
		go r.applyReloads(ctx, reload, discovery, capture)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return discovery.Run(gctx) })
	g.Go(func() error { return capture.Run(gctx) })
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return persistence.Run(gctx) })

	err = g.Wait()
	if err == context.Canceled {
		err = nil
	}

	lastSeq := make(map[uint64]int64)
	for _, p := range r.Registry.Snapshot() {
		lastSeq[p.ID] = r.Registry.Cursor(p.ID)
	}
	summary := BuildShutdownSummary(started, map[string]int{"ingress": len(ingress), "relay": len(relayOut)}, r.Segments.Sum(), lastSeq, nil)
	return summary, err
}

func (r *Runtime) applyReloads(ctx context.Context, reload <-chan config.Config, discovery *Discovery, capture *Capture) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-reload:
			if !ok {
				return
			}
			discovery.Interval = cfg.DiscoveryInterval()
			capture.mu.Lock()
			capture.MinInterval = cfg.MinCaptureInterval()
			capture.MaxInterval = cfg.CaptureInterval()
			capture.Scheduler.MaxConcurrent = cfg.MaxConcurrentTailers
			capture.CapturesPerSec = cfg.PaneCapturesPerSec
			capture.BytesPerSec = cfg.PaneBytesPerSec
			capture.mu.Unlock()
		}
	}
}
