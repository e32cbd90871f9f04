package crashbundle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ehrlich-b/ft/internal/redact"
)

// ReplayMode selects which checks replay runs.
type ReplayMode string

const (
	ReplayPolicy ReplayMode = "policy"
	ReplayRules  ReplayMode = "rules"
)

// Check is a single named pass/fail result within a replay.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// ReplayResult is the outcome of replaying one incident bundle.
type ReplayResult struct {
	Mode     ReplayMode `json:"mode"`
	Status   string     `json:"status"`
	Checks   []Check    `json:"checks"`
	Warnings []string   `json:"warnings"`
}

// Replay loads bundlePath's manifest and runs a mode-specific battery of
// offline consistency checks: that the manifest parses, that no secret
// shapes remain in any bundle file, that every file the manifest lists
// actually exists, plus mode-specific structural checks.
func Replay(bundlePath string, mode ReplayMode) (ReplayResult, error) {
	info, err := os.Stat(bundlePath)
	if err != nil || !info.IsDir() {
		return ReplayResult{}, fmt.Errorf("bundle directory not found: %s", bundlePath)
	}

	var checks []Check
	var warnings []string

	var manifest *Result
	manifestPath := filepath.Join(bundlePath, "incident_manifest.json")
	if data, err := os.ReadFile(manifestPath); err == nil {
		var m Result
		if err := json.Unmarshal(data, &m); err == nil {
			manifest = &m
			checks = append(checks, Check{Name: "manifest_valid", Passed: true, Detail: "incident_manifest.json is valid"})
		} else {
			checks = append(checks, Check{Name: "manifest_valid", Passed: false, Detail: fmt.Sprintf("invalid manifest JSON: %v", err)})
		}
	} else {
		checks = append(checks, Check{Name: "manifest_valid", Passed: false, Detail: "incident_manifest.json not found"})
	}

	if data, err := os.ReadFile(filepath.Join(bundlePath, "redaction_report.json")); err == nil {
		var rr RedactionReport
		if err := json.Unmarshal(data, &rr); err == nil {
			checks = append(checks, Check{
				Name:   "redaction_report_valid",
				Passed: true,
				Detail: fmt.Sprintf("%d total redactions across %d files", rr.TotalRedactions, len(rr.PerFile)),
			})
		} else {
			checks = append(checks, Check{Name: "redaction_report_valid", Passed: false, Detail: fmt.Sprintf("invalid redaction report: %v", err)})
		}
	} else {
		warnings = append(warnings, "no redaction_report.json found")
	}

	checks = append(checks, noSecretsLeakedChecks(bundlePath)...)

	switch mode {
	case ReplayPolicy:
		checks = append(checks, policyChecks(bundlePath)...)
	case ReplayRules:
		checks, warnings = rulesChecks(bundlePath, checks, warnings)
	}

	if manifest != nil {
		var missing []string
		for _, f := range manifest.Files {
			if _, err := os.Stat(filepath.Join(bundlePath, f)); err != nil {
				missing = append(missing, f)
			}
		}
		if len(missing) == 0 {
			checks = append(checks, Check{Name: "files_complete", Passed: true, Detail: fmt.Sprintf("all %d listed files present", len(manifest.Files))})
		} else {
			checks = append(checks, Check{Name: "files_complete", Passed: false, Detail: "missing files: " + joinComma(missing)})
		}
	}

	status := "pass"
	for _, c := range checks {
		if !c.Passed {
			status = "fail"
			break
		}
	}

	return ReplayResult{Mode: mode, Status: status, Checks: checks, Warnings: warnings}, nil
}

func noSecretsLeakedChecks(bundlePath string) []Check {
	r := redact.New()
	entries, err := os.ReadDir(bundlePath)
	if err != nil {
		return nil
	}
	var checks []Check
	leaked := false
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".json" && ext != ".toml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(bundlePath, e.Name()))
		if err != nil {
			continue
		}
		matches := r.Detect(string(data))
		if len(matches) > 0 {
			leaked = true
			checks = append(checks, Check{
				Name:   "no_secrets_" + e.Name(),
				Passed: false,
				Detail: fmt.Sprintf("%d potential secret(s) detected in %s", len(matches), e.Name()),
			})
		}
	}
	if !leaked {
		checks = append(checks, Check{Name: "no_secrets_leaked", Passed: true, Detail: "no secrets detected in bundle files"})
	}
	return checks
}

func policyChecks(bundlePath string) []Check {
	var checks []Check
	if data, err := os.ReadFile(filepath.Join(bundlePath, "crash_report.json")); err == nil {
		var rep Report
		if err := json.Unmarshal(data, &rep); err == nil {
			checks = append(checks, Check{Name: "crash_report_valid", Passed: true, Detail: fmt.Sprintf("crash at %d (pid %d)", rep.TimestampS, rep.PID)})
		} else {
			checks = append(checks, Check{Name: "crash_report_valid", Passed: false, Detail: fmt.Sprintf("invalid crash report: %v", err)})
		}
	}
	if data, err := os.ReadFile(filepath.Join(bundlePath, "db_metadata.json")); err == nil {
		var meta DBMetadata
		if err := json.Unmarshal(data, &meta); err == nil {
			checks = append(checks, Check{
				Name:   "db_metadata_valid",
				Passed: true,
				Detail: fmt.Sprintf("schema_version=%s, events=%d, segments=%d", meta.SchemaVersion, meta.EventCount, meta.SegmentCount),
			})
		} else {
			checks = append(checks, Check{Name: "db_metadata_valid", Passed: false, Detail: fmt.Sprintf("invalid db metadata: %v", err)})
		}
	}
	return checks
}

func rulesChecks(bundlePath string, checks []Check, warnings []string) ([]Check, []string) {
	eventsPath := filepath.Join(bundlePath, "recent_events.json")
	data, err := os.ReadFile(eventsPath)
	if err != nil {
		return checks, append(warnings, "no recent_events.json in bundle")
	}

	var events []map[string]any
	if err := json.Unmarshal(data, &events); err != nil {
		return append(checks, Check{Name: "events_structure_valid", Passed: false, Detail: fmt.Sprintf("invalid events JSON: %v", err)}), warnings
	}

	validCount := 0
	oversized := 0
	for _, e := range events {
		if e["rule_id"] != nil && e["event_type"] != nil && e["severity"] != nil {
			validCount++
		}
		if preview, ok := e["matched_text_preview"].(string); ok && len([]rune(preview)) > 200 {
			oversized++
		}
	}
	checks = append(checks, Check{
		Name:   "events_structure_valid",
		Passed: validCount == len(events),
		Detail: fmt.Sprintf("%d/%d events have required fields", validCount, len(events)),
	})
	checks = append(checks, Check{
		Name:   "events_text_bounded",
		Passed: oversized == 0,
		Detail: boundedDetail(oversized),
	})
	return checks, warnings
}

func boundedDetail(oversized int) string {
	if oversized == 0 {
		return "all matched_text_preview values are bounded"
	}
	return fmt.Sprintf("%d events have oversized text previews", oversized)
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
