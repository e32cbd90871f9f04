package crashbundle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/ft/internal/redact"
)

// maxBundleBytes is the privacy/size budget for a crash bundle's file
// contents (manifest.json does not count toward it).
const maxBundleBytes = 1024 * 1024

// ftVersion is stamped into every bundle manifest; overridable at build
// time via -ldflags "-X .../crashbundle.ftVersion=...".
var ftVersion = "dev"

// Manifest is written to manifest.json in each crash bundle.
type Manifest struct {
	FTVersion         string   `json:"ft_version"`
	CreatedAt         string   `json:"created_at"`
	Files             []string `json:"files"`
	HasHealthSnapshot bool     `json:"has_health_snapshot"`
	BundleSizeBytes   int64    `json:"bundle_size_bytes"`
}

// WriteCrashBundle writes report (and health, if present) to a new
// timestamped directory under crashDir, redacting text content first.
// The bundle is built in a sibling temp directory and renamed into place
// so a reader never observes a partially-written bundle.
func WriteCrashBundle(crashDir string, report Report, health *HealthSnapshot) (string, error) {
	r := redact.New()
	report.Message = r.Redact(report.Message)
	if report.Backtrace != "" {
		report.Backtrace = r.Redact(report.Backtrace)
	}

	ts := time.Unix(report.TimestampS, 0).UTC()
	bundleName := "wa_crash_" + ts.Format("20060102_150405")

	if err := os.MkdirAll(crashDir, 0o755); err != nil {
		return "", fmt.Errorf("create crash dir: %w", err)
	}
	tmpDir, err := os.MkdirTemp(crashDir, "."+bundleName+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create bundle temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var files []string
	var total int64

	reportBytes, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash report: %w", err)
	}
	if total+int64(len(reportBytes)) <= maxBundleBytes {
		if err := writeFileSync(filepath.Join(tmpDir, "crash_report.json"), reportBytes); err != nil {
			return "", err
		}
		files = append(files, "crash_report.json")
		total += int64(len(reportBytes))
	}

	hasHealth := false
	if health != nil {
		healthBytes, err := json.MarshalIndent(health, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal health snapshot: %w", err)
		}
		if total+int64(len(healthBytes)) <= maxBundleBytes {
			if err := writeFileSync(filepath.Join(tmpDir, "health_snapshot.json"), healthBytes); err != nil {
				return "", err
			}
			files = append(files, "health_snapshot.json")
			total += int64(len(healthBytes))
			hasHealth = true
		}
	}

	manifest := Manifest{
		FTVersion:         ftVersion,
		CreatedAt:         ts.Format(time.RFC3339),
		Files:             files,
		HasHealthSnapshot: hasHealth,
		BundleSizeBytes:   total,
	}
	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	if err := writeFileSync(filepath.Join(tmpDir, "manifest.json"), manifestBytes); err != nil {
		return "", err
	}

	finalDir, err := claimBundleDir(crashDir, bundleName)
	if err != nil {
		return "", err
	}
	if err := os.Rename(tmpDir, finalDir); err != nil {
		return "", fmt.Errorf("rename bundle into place: %w", err)
	}
	_ = os.Chmod(finalDir, 0o700)

	return finalDir, nil
}

// claimBundleDir picks an unused directory name, appending _1.._100 on
// collision (two panics landing in the same wall-clock second).
func claimBundleDir(crashDir, bundleName string) (string, error) {
	candidate := filepath.Join(crashDir, bundleName)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate, nil
	}
	for n := 1; n <= 100; n++ {
		candidate = filepath.Join(crashDir, fmt.Sprintf("%s_%d", bundleName, n))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("too many crash bundles named %q", bundleName)
}

// writeFileSync writes data to path, fsyncs it, and restricts permissions
// to the owner, matching crash.rs's write_file_sync.
func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := unix.Fsync(int(f.Fd())); err != nil {
		return fmt.Errorf("fsync %s: %w", path, err)
	}
	_ = os.Chmod(path, 0o600)
	return nil
}
