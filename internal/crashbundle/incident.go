package crashbundle

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ehrlich-b/ft/internal/redact"
)

// Kind discriminates what triggered an incident export.
type Kind string

const (
	KindCrash  Kind = "crash"
	KindManual Kind = "manual"
)

// Options configures CollectIncidentBundle.
type Options struct {
	CrashDir   string
	ConfigPath string
	OutDir     string
	Kind       Kind
	DBPath     string
	MaxEvents  int
}

// Result reports what was written into an incident bundle.
type Result struct {
	Path            string   `json:"path"`
	Kind            Kind     `json:"kind"`
	Files           []string `json:"files"`
	TotalSizeBytes  int64    `json:"total_size_bytes"`
	FTVersion       string   `json:"ft_version"`
	ExportedAt      string   `json:"exported_at"`
}

// DBMetadata summarizes the storage handle's on-disk database for an
// incident bundle, gathered via a dedicated read-only connection rather
// than the live storage.Handle so a stuck write lock never blocks export.
type DBMetadata struct {
	SchemaVersion string `json:"schema_version,omitempty"`
	DBSizeBytes   int64  `json:"db_size_bytes,omitempty"`
	JournalMode   string `json:"journal_mode,omitempty"`
	EventCount    int64  `json:"event_count,omitempty"`
	SegmentCount  int64  `json:"segment_count,omitempty"`
}

// RedactionReport summarizes redactions applied while collecting a bundle.
type RedactionReport struct {
	TotalRedactions int                `json:"total_redactions"`
	PerFile         []redact.FileEntry `json:"per_file"`
}

// CollectIncidentBundle gathers the latest crash bundle (if Kind is
// KindCrash), a redacted config summary, DB metadata, and a bounded
// window of recent detection events into a self-contained directory.
func CollectIncidentBundle(opts Options) (Result, error) {
	ts := time.Now().UTC()
	bundleName := fmt.Sprintf("wa_incident_%s_%s", opts.Kind, ts.Format("20060102_150405"))
	bundleDir := filepath.Join(opts.OutDir, bundleName)
	if err := os.MkdirAll(bundleDir, 0o700); err != nil {
		return Result{}, fmt.Errorf("create incident dir: %w", err)
	}

	r := redact.WithDebugMarkers()
	report := &redact.Report{}
	var files []string
	var total int64

	if opts.Kind == KindCrash {
		if crash, ok := LatestCrashBundle(opts.CrashDir); ok {
			if crash.Report != nil {
				if data, err := json.MarshalIndent(crash.Report, "", "  "); err == nil {
					writeRedacted(bundleDir, "crash_report.json", string(data), r, report, &files, &total)
				}
			}
			if crash.Manifest != nil {
				if data, err := json.MarshalIndent(crash.Manifest, "", "  "); err == nil {
					writeRedacted(bundleDir, "crash_manifest.json", string(data), r, report, &files, &total)
				}
			}
			if data, err := os.ReadFile(filepath.Join(crash.Path, "health_snapshot.json")); err == nil {
				writeRedacted(bundleDir, "health_snapshot.json", string(data), r, report, &files, &total)
			}
		}
	}

	if opts.ConfigPath != "" {
		if data, err := os.ReadFile(opts.ConfigPath); err == nil {
			content := string(data)
			const maxConfigBytes = 64 * 1024
			if len(content) > maxConfigBytes {
				content = content[:maxConfigBytes] + "\n... [truncated at 64 KiB]"
			}
			writeRedacted(bundleDir, "config_summary.json", content, r, report, &files, &total)
		}
	}

	if opts.DBPath != "" {
		if _, err := os.Stat(opts.DBPath); err == nil {
			meta := collectDBMetadata(opts.DBPath)
			if data, err := json.MarshalIndent(meta, "", "  "); err == nil {
				writeRedacted(bundleDir, "db_metadata.json", string(data), r, report, &files, &total)
			}
			if opts.MaxEvents > 0 {
				if eventsJSON, ok := collectRecentEventsSummary(opts.DBPath, opts.MaxEvents); ok {
					writeRedacted(bundleDir, "recent_events.json", eventsJSON, r, report, &files, &total)
				}
			}
		}
	}

	reportBytes, err := json.MarshalIndent(RedactionReport{TotalRedactions: report.TotalRedactions, PerFile: report.PerFile}, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("marshal redaction report: %w", err)
	}
	if err := writeFileSync(filepath.Join(bundleDir, "redaction_report.json"), reportBytes); err != nil {
		return Result{}, err
	}
	files = append(files, "redaction_report.json")
	total += int64(len(reportBytes))

	result := Result{
		Path:           bundleDir,
		Kind:           opts.Kind,
		Files:          files,
		TotalSizeBytes: total,
		FTVersion:      ftVersion,
		ExportedAt:     ts.Format(time.RFC3339),
	}
	manifestBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("marshal incident manifest: %w", err)
	}
	if err := writeFileSync(filepath.Join(bundleDir, "incident_manifest.json"), manifestBytes); err != nil {
		return Result{}, err
	}

	return result, nil
}

func writeRedacted(bundleDir, name, content string, r *redact.Redactor, report *redact.Report, files *[]string, total *int64) {
	data := r.RedactAndRecord(name, content, report)
	if err := writeFileSync(filepath.Join(bundleDir, name), data); err != nil {
		return
	}
	*files = append(*files, name)
	*total += int64(len(data))
}

func collectDBMetadata(dbPath string) DBMetadata {
	meta := DBMetadata{}
	if info, err := os.Stat(dbPath); err == nil {
		meta.DBSizeBytes = info.Size()
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return meta
	}
	defer db.Close()

	_ = db.QueryRow("SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1").Scan(&meta.SchemaVersion)
	_ = db.QueryRow("PRAGMA journal_mode").Scan(&meta.JournalMode)
	_ = db.QueryRow("SELECT count(*) FROM events").Scan(&meta.EventCount)
	_ = db.QueryRow("SELECT count(*) FROM segments").Scan(&meta.SegmentCount)
	return meta
}

// eventSummary is a sanitized view of one detection event, bounding the
// matched-text preview the same way crash.rs's collect_recent_events_summary does.
type eventSummary struct {
	ID                 int64  `json:"id"`
	PaneID              int64  `json:"pane_id"`
	RuleID              string `json:"rule_id"`
	EventType           string `json:"event_type"`
	Severity            string `json:"severity"`
	DetectedAtMS        int64  `json:"detected_at_ms"`
	MatchedTextPreview  string `json:"matched_text_preview"`
}

func collectRecentEventsSummary(dbPath string, maxEvents int) (string, bool) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return "", false
	}
	defer db.Close()

	rows, err := db.Query(`SELECT id, pane_id, rule_id, event_type, severity, detected_at_ms,
		COALESCE(matched_text, '') FROM events ORDER BY detected_at_ms DESC LIMIT ?`, maxEvents)
	if err != nil {
		return "", false
	}
	defer rows.Close()

	var events []eventSummary
	for rows.Next() {
		var e eventSummary
		var text string
		if err := rows.Scan(&e.ID, &e.PaneID, &e.RuleID, &e.EventType, &e.Severity, &e.DetectedAtMS, &text); err != nil {
			continue
		}
		runes := []rune(text)
		if len(runes) > 200 {
			runes = runes[:200]
		}
		e.MatchedTextPreview = string(runes)
		events = append(events, e)
	}

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return "", false
	}
	return string(data), true
}
