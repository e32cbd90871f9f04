// Package config loads and hot-reloads the observation runtime's
// configuration, following the teacher's layered user/project precedence
// (project overrides user overrides default) but flattened to a single
// daemon-root settings file, since ft has no per-project working set.
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// PanePriorityOverride is a transient operator override on a pane's capture
// priority, with an optional wall-clock expiry (spec §4.1).
type PanePriorityOverride struct {
	PaneID    uint64     `json:"pane_id"`
	Priority  int        `json:"priority"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Config holds every tunable the observation runtime, reflow engine and
// indexer consult. Fields are grouped by the pipeline stage that owns them.
// All duration/byte fields are reloadable per spec §4.1 "Hot reload".
type Config struct {
	// Discovery
	DiscoveryIntervalMS int `json:"discovery_interval_ms,omitempty"`

	// Capture (adaptive tailer polling)
	MinCaptureIntervalMS int     `json:"min_capture_interval_ms,omitempty"`
	CaptureIntervalMS    int     `json:"capture_interval_ms,omitempty"`
	CaptureBackoffFactor float64 `json:"capture_backoff_factor,omitempty"`
	MaxConcurrentTailers int     `json:"max_concurrent_tailers,omitempty"`
	PaneCapturesPerSec   float64 `json:"pane_captures_per_sec,omitempty"`
	PaneBytesPerSec      float64 `json:"pane_bytes_per_sec,omitempty"`

	// Native-event coalescing
	NativeCoalesceWindowMS   int `json:"native_coalesce_window_ms,omitempty"`
	NativeCoalesceMaxDelayMS int `json:"native_coalesce_max_delay_ms,omitempty"`
	NativeCoalesceMaxBytes   int `json:"native_coalesce_max_bytes,omitempty"`

	// Retention & maintenance
	RetentionDays     int `json:"retention_days,omitempty"`
	CheckpointCadence int `json:"checkpoint_cadence_secs,omitempty"`

	// Indexer
	IndexerBatchSize  int    `json:"indexer_batch_size,omitempty"`
	IndexerMaxBatches int    `json:"indexer_max_batches,omitempty"`
	PatternRuleSetDir string `json:"pattern_rule_set_dir,omitempty"`

	// Reflow readability gate (spec §4.2; disabled unless Enabled is set)
	ReadabilityGateEnabled       bool `json:"readability_gate_enabled,omitempty"`
	MaxLineBadnessDeltaPermille  int  `json:"max_line_badness_delta_permille,omitempty"`
	MaxTotalBadnessDeltaPermille int  `json:"max_total_badness_delta_permille,omitempty"`
	MaxFallbackRatioPercent      int  `json:"max_fallback_ratio_percent,omitempty"`

	// Crash/incident bundles
	CrashDir string `json:"crash_dir,omitempty"`

	// Per-pane priority overrides, keyed by pane id for O(1) lookup once loaded.
	PriorityOverrides []PanePriorityOverride `json:"priority_overrides,omitempty"`
}

// Default returns the spec's documented defaults.
func Default() Config {
	return Config{
		DiscoveryIntervalMS:      5000,
		MinCaptureIntervalMS:     50,
		CaptureIntervalMS:        200,
		CaptureBackoffFactor:     1.5,
		MaxConcurrentTailers:     64,
		PaneCapturesPerSec:       20,
		PaneBytesPerSec:          1 << 20,
		NativeCoalesceWindowMS:   50,
		NativeCoalesceMaxDelayMS: 200,
		NativeCoalesceMaxBytes:   256 * 1024,
		RetentionDays:            30,
		CheckpointCadence:        60,
		IndexerBatchSize:         512,
		IndexerMaxBatches:        0,
	}
}

func (c Config) DiscoveryInterval() time.Duration {
	return time.Duration(c.DiscoveryIntervalMS) * time.Millisecond
}

func (c Config) MinCaptureInterval() time.Duration {
	return time.Duration(c.MinCaptureIntervalMS) * time.Millisecond
}

func (c Config) CaptureInterval() time.Duration {
	return time.Duration(c.CaptureIntervalMS) * time.Millisecond
}

// merge overlays non-zero fields of override onto base, returning the
// result. Mirrors the teacher's getStringValue/getBoolValue/getIntValue
// precedence helpers, generalized to a field-by-field merge.
func merge(base, override Config) Config {
	out := base
	if override.DiscoveryIntervalMS != 0 {
		out.DiscoveryIntervalMS = override.DiscoveryIntervalMS
	}
	if override.MinCaptureIntervalMS != 0 {
		out.MinCaptureIntervalMS = override.MinCaptureIntervalMS
	}
	if override.CaptureIntervalMS != 0 {
		out.CaptureIntervalMS = override.CaptureIntervalMS
	}
	if override.CaptureBackoffFactor != 0 {
		out.CaptureBackoffFactor = override.CaptureBackoffFactor
	}
	if override.MaxConcurrentTailers != 0 {
		out.MaxConcurrentTailers = override.MaxConcurrentTailers
	}
	if override.PaneCapturesPerSec != 0 {
		out.PaneCapturesPerSec = override.PaneCapturesPerSec
	}
	if override.PaneBytesPerSec != 0 {
		out.PaneBytesPerSec = override.PaneBytesPerSec
	}
	if override.NativeCoalesceWindowMS != 0 {
		out.NativeCoalesceWindowMS = override.NativeCoalesceWindowMS
	}
	if override.NativeCoalesceMaxDelayMS != 0 {
		out.NativeCoalesceMaxDelayMS = override.NativeCoalesceMaxDelayMS
	}
	if override.NativeCoalesceMaxBytes != 0 {
		out.NativeCoalesceMaxBytes = override.NativeCoalesceMaxBytes
	}
	if override.RetentionDays != 0 {
		out.RetentionDays = override.RetentionDays
	}
	if override.CheckpointCadence != 0 {
		out.CheckpointCadence = override.CheckpointCadence
	}
	if override.IndexerBatchSize != 0 {
		out.IndexerBatchSize = override.IndexerBatchSize
	}
	if override.IndexerMaxBatches != 0 {
		out.IndexerMaxBatches = override.IndexerMaxBatches
	}
	if override.PatternRuleSetDir != "" {
		out.PatternRuleSetDir = override.PatternRuleSetDir
	}
	if override.ReadabilityGateEnabled {
		out.ReadabilityGateEnabled = true
		out.MaxLineBadnessDeltaPermille = override.MaxLineBadnessDeltaPermille
		out.MaxTotalBadnessDeltaPermille = override.MaxTotalBadnessDeltaPermille
		out.MaxFallbackRatioPercent = override.MaxFallbackRatioPercent
	}
	if override.CrashDir != "" {
		out.CrashDir = override.CrashDir
	}
	if len(override.PriorityOverrides) > 0 {
		out.PriorityOverrides = override.PriorityOverrides
	}
	return out
}

// Manager loads a single settings file over the built-in default and
// serves hot-reload snapshots over a watch channel, mirroring the
// teacher's userConfig/projectConfig/merged split but collapsed to one
// on-disk override layer (the daemon has no notion of a "project").
type Manager struct {
	path    string
	fileCfg Config
	merged  Config
}

// NewManager loads path (if present) over Default().
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: path, merged: Default()}
	if err := m.reload(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) reload() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			m.merged = Default()
			return nil
		}
		return err
	}
	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return err
	}
	m.fileCfg = fileCfg
	m.merged = merge(Default(), fileCfg)
	return nil
}

// Get returns the current merged configuration snapshot.
func (m *Manager) Get() Config { return m.merged }

// Save persists the override layer (not the merged defaults) to disk.
func (m *Manager) Save() error {
	data, err := json.MarshalIndent(m.fileCfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

// Watch starts an fsnotify watcher on the settings file's directory and
// pushes a freshly merged Config on every write/create event, implementing
// the hot-reload watch-channel described in spec §4.1. The returned channel
// is closed once stop fires or the watcher itself errors out terminally.
func (m *Manager) Watch(stop <-chan struct{}) (<-chan Config, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := dirOf(m.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	out := make(chan Config, 1)
	go func() {
		defer close(out)
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != m.path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := m.reload(); err != nil {
					continue
				}
				select {
				case out <- m.merged:
				default:
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return out, nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
