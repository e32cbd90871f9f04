package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/ft/internal/config"
	"github.com/ehrlich-b/ft/internal/crashbundle"
	"github.com/ehrlich-b/ft/internal/logger"
	"github.com/ehrlich-b/ft/internal/mux/localmux"
	"github.com/ehrlich-b/ft/internal/observe"
	"github.com/ehrlich-b/ft/internal/pattern"
	"github.com/ehrlich-b/ft/internal/storage"
)

func main() {
	var root string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "ftd",
		Short: "ft observation daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(root, logLevel)
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "data root directory (default ~/.ft)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn, or error")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ftd: %v\n", err)
		os.Exit(1)
	}
}

func run(root, logLevel string) error {
	paths, err := config.NewPaths(root)
	if err != nil {
		return fmt.Errorf("resolve data root: %w", err)
	}
	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("ensure data directories: %w", err)
	}

	if err := logger.Init(logLevel, filepath.Join(paths.Root, "ftd.log")); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	defer crashbundle.Guard(crashbundle.Config{CrashDir: paths.CrashDir(), IncludeBacktrace: true})()

	cfgMgr, err := config.NewManager(paths.SettingsPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := cfgMgr.Get()

	store, err := storage.Open(paths.DBPath())
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	detector, err := loadDetector(cfg.PatternRuleSetDir)
	if err != nil {
		logger.Warn("pattern rule set failed to load, detection disabled", "error", err, "dir", cfg.PatternRuleSetDir)
		detector = pattern.NewFixtureEngine(pattern.RuleSet{})
	}

	client := localmux.NewClient()
	defer client.Close()

	rt := observe.NewRuntime(client, store, detector, cfgMgr)
	rt.Logger = logger.Log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	healthStop := make(chan struct{})
	defer close(healthStop)
	go publishHealth(ctx.Done(), healthStop, rt, store)

	errCh := make(chan error, 1)
	resultCh := make(chan observe.ShutdownSummary, 1)
	go func() {
		summary, err := rt.Run(ctx)
		resultCh <- summary
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		logger.Info("signal received, shutting down")
	case err := <-errCh:
		summary := <-resultCh
		logObserveShutdown(summary)
		return err
	}

	select {
	case err := <-errCh:
		summary := <-resultCh
		logObserveShutdown(summary)
		return err
	case <-time.After(10 * time.Second):
		return fmt.Errorf("runtime did not shut down within the grace period")
	}
}

func logObserveShutdown(summary observe.ShutdownSummary) {
	logger.Info("runtime stopped",
		"elapsed", summary.Elapsed,
		"total_segments", summary.TotalSegments,
		"panes", len(summary.LastSeqByPane),
	)
}

// publishHealth periodically converts the runtime's live telemetry into
// a crashbundle.HealthSnapshot, so a crash anywhere in the process has a
// recent snapshot to attach to its bundle (spec §4.1's 30s cadence).
func publishHealth(done <-chan struct{}, stop <-chan struct{}, rt *observe.Runtime, store *storage.SQLiteHandle) {
	collector := &observe.Collector{
		Registry:  rt.Registry,
		Store:     store,
		IngestLag: rt.IngestLag,
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-stop:
			return
		case <-ticker.C:
			snap := collector.Snapshot()
			crashbundle.UpdateGlobal(crashbundle.HealthSnapshot{
				TimestampMS:     time.Now().UnixMilli(),
				ObservedPanes:   snap.ObservedPanes,
				WriteQueueDepth: snap.QueueDepths["write_queue"],
				LastSeqByPane:   snap.LastSeqByPane,
				Warnings:        snap.Warnings,
				IngestLagAvgMS:  snap.IngestLagP50,
				IngestLagMaxMS:  int64(snap.IngestLagP95),
				DBWritable:      snap.DatabaseWritable,
				DBLastWriteAtMS: snap.LastWriteAtMS,
			})
		}
	}
}

// loadDetector reads every *.yaml file in dir and merges their rules
// into one FixtureEngine. An empty dir yields an engine with no rules,
// which simply never detects anything — the production rule-matching
// engine is external per spec.md's non-goals.
func loadDetector(dir string) (pattern.Engine, error) {
	if dir == "" {
		return pattern.NewFixtureEngine(pattern.RuleSet{}), nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var rs pattern.RuleSet
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != ".yaml" && filepath.Ext(name) != ".yml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read rule file %s: %w", name, err)
		}
		part, err := pattern.LoadRuleSetYAML(data)
		if err != nil {
			return nil, fmt.Errorf("parse rule file %s: %w", name, err)
		}
		rs.Rules = append(rs.Rules, part.Rules...)
	}
	return pattern.NewFixtureEngine(rs), nil
}
