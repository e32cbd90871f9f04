package crashbundle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testHealth() *HealthSnapshot {
	return &HealthSnapshot{
		TimestampMS:       1234567890,
		ObservedPanes:     5,
		CaptureQueueDepth: 10,
		WriteQueueDepth:   5,
		LastSeqByPane:     map[uint64]int64{1: 100, 2: 200},
		Warnings:          []string{"test warning"},
		IngestLagAvgMS:    15.5,
		DBWritable:        true,
	}
}

func TestWriteCrashBundleCreatesDirectoryAndFiles(t *testing.T) {
	crashDir := filepath.Join(t.TempDir(), "crash")
	report := Report{Message: "test panic", Location: "test.go:1", Backtrace: "frame 0\nframe 1", TimestampS: 1700000000, PID: 999}

	bundlePath, err := WriteCrashBundle(crashDir, report, testHealth())
	if err != nil {
		t.Fatalf("WriteCrashBundle: %v", err)
	}

	for _, f := range []string{"manifest.json", "crash_report.json", "health_snapshot.json"} {
		if _, err := os.Stat(filepath.Join(bundlePath, f)); err != nil {
			t.Fatalf("expected %s to exist: %v", f, err)
		}
	}
	if !strings.HasPrefix(filepath.Base(bundlePath), "wa_crash_") {
		t.Fatalf("expected bundle dir name to start with wa_crash_, got %s", bundlePath)
	}
}

func TestWriteCrashBundleWithoutHealthSnapshot(t *testing.T) {
	crashDir := filepath.Join(t.TempDir(), "crash")
	report := Report{Message: "no health", TimestampS: 1700000000, PID: 1}

	bundlePath, err := WriteCrashBundle(crashDir, report, nil)
	if err != nil {
		t.Fatalf("WriteCrashBundle: %v", err)
	}
	if _, err := os.Stat(filepath.Join(bundlePath, "health_snapshot.json")); err == nil {
		t.Fatalf("expected no health_snapshot.json to be written")
	}

	data, err := os.ReadFile(filepath.Join(bundlePath, "manifest.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if strings.Contains(string(data), `"has_health_snapshot": true`) {
		t.Fatalf("manifest should record no health snapshot: %s", data)
	}
}

func TestWriteCrashBundleRedactsSecrets(t *testing.T) {
	crashDir := filepath.Join(t.TempDir(), "crash")
	report := Report{
		Message:    "failed with key sk-ant-REDACTED",
		Backtrace:  "token=my_secret_token_1234567890 in frame",
		TimestampS: 1700000000,
		PID:        1,
	}

	bundlePath, err := WriteCrashBundle(crashDir, report, nil)
	if err != nil {
		t.Fatalf("WriteCrashBundle: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(bundlePath, "crash_report.json"))
	if err != nil {
		t.Fatalf("read crash_report.json: %v", err)
	}
	if strings.Contains(string(data), "sk-ant-api03") {
		t.Fatalf("API key should be redacted: %s", data)
	}
	if !strings.Contains(string(data), "[REDACTED]") {
		t.Fatalf("expected a REDACTED marker: %s", data)
	}
}

func TestWriteCrashBundleHandlesDuplicateTimestamp(t *testing.T) {
	crashDir := filepath.Join(t.TempDir(), "crash")
	report := Report{Message: "first", TimestampS: 1700000000, PID: 1}

	path1, err := WriteCrashBundle(crashDir, report, nil)
	if err != nil {
		t.Fatalf("first WriteCrashBundle: %v", err)
	}
	report2 := report
	report2.Message = "second"
	path2, err := WriteCrashBundle(crashDir, report2, nil)
	if err != nil {
		t.Fatalf("second WriteCrashBundle: %v", err)
	}
	if path1 == path2 {
		t.Fatalf("expected distinct bundle directories for a duplicate timestamp")
	}
	if _, err := os.Stat(path1); err != nil {
		t.Fatalf("expected path1 to still exist: %v", err)
	}
	if _, err := os.Stat(path2); err != nil {
		t.Fatalf("expected path2 to still exist: %v", err)
	}
}

func TestListCrashBundlesSortsNewestFirst(t *testing.T) {
	crashDir := filepath.Join(t.TempDir(), "crash")
	older := Report{Message: "older", TimestampS: 1700000000, PID: 1}
	newer := Report{Message: "newer", TimestampS: 1700000100, PID: 2}

	if _, err := WriteCrashBundle(crashDir, older, nil); err != nil {
		t.Fatalf("write older: %v", err)
	}
	if _, err := WriteCrashBundle(crashDir, newer, nil); err != nil {
		t.Fatalf("write newer: %v", err)
	}

	bundles := ListCrashBundles(crashDir, 10)
	if len(bundles) != 2 {
		t.Fatalf("expected 2 bundles, got %d", len(bundles))
	}
	if bundles[0].Report == nil || bundles[0].Report.Message != "newer" {
		t.Fatalf("expected the newest bundle first, got %+v", bundles[0].Report)
	}
}

func TestLatestCrashBundleEmptyDir(t *testing.T) {
	_, ok := LatestCrashBundle(filepath.Join(t.TempDir(), "crash"))
	if ok {
		t.Fatalf("expected no bundle in an empty directory")
	}
}

func TestWriteFileSyncRestrictsPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.json")
	if err := writeFileSync(path, []byte("{}")); err != nil {
		t.Fatalf("writeFileSync: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 permissions, got %v", info.Mode().Perm())
	}
}

func TestGlobalHealthSnapshotUpdateAndGet(t *testing.T) {
	snap := HealthSnapshot{TimestampMS: time.Now().UnixMilli(), ObservedPanes: 3, DBWritable: true}
	UpdateGlobal(snap)
	got, ok := GetGlobal()
	if !ok {
		t.Fatalf("expected a global snapshot to be present")
	}
	if got.ObservedPanes != 3 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}
