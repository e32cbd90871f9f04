package crashbundle

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGuardWritesBundleAndRepanics(t *testing.T) {
	crashDir := filepath.Join(t.TempDir(), "crash")

	func() {
		defer func() {
			_ = recover() // swallow the re-panic from Guard so the test can assert on disk state
		}()
		defer Guard(Config{CrashDir: crashDir, IncludeBacktrace: true})()
		panic("kaboom")
	}()

	entries, err := os.ReadDir(crashDir)
	if err != nil {
		t.Fatalf("read crash dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one crash bundle, got %d", len(entries))
	}

	data, err := os.ReadFile(filepath.Join(crashDir, entries[0].Name(), "crash_report.json"))
	if err != nil {
		t.Fatalf("read crash_report.json: %v", err)
	}
	if !contains(string(data), "kaboom") {
		t.Fatalf("expected the panic message in the crash report: %s", data)
	}
}

func TestGuardNoPanicIsNoop(t *testing.T) {
	crashDir := filepath.Join(t.TempDir(), "crash")
	func() {
		defer Guard(Config{CrashDir: crashDir})()
	}()
	if _, err := os.Stat(crashDir); err == nil {
		t.Fatalf("expected no crash dir to be created when nothing panicked")
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
