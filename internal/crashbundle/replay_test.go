package crashbundle

import (
	"path/filepath"
	"testing"
)

func TestReplayMissingBundleErrors(t *testing.T) {
	_, err := Replay(filepath.Join(t.TempDir(), "nope"), ReplayPolicy)
	if err == nil {
		t.Fatalf("expected an error for a missing bundle directory")
	}
}

func TestReplayPolicyModePassesOnCleanBundle(t *testing.T) {
	crashDir := filepath.Join(t.TempDir(), "crash")
	if _, err := WriteCrashBundle(crashDir, Report{Message: "clean panic", TimestampS: 1700000000, PID: 1}, nil); err != nil {
		t.Fatalf("seed crash bundle: %v", err)
	}
	outDir := filepath.Join(t.TempDir(), "incidents")
	result, err := CollectIncidentBundle(Options{CrashDir: crashDir, OutDir: outDir, Kind: KindCrash})
	if err != nil {
		t.Fatalf("CollectIncidentBundle: %v", err)
	}

	replay, err := Replay(result.Path, ReplayPolicy)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if replay.Status != "pass" {
		t.Fatalf("expected a clean bundle to pass replay, got %s: %+v", replay.Status, replay.Checks)
	}
}

func TestReplayDetectsLeakedSecret(t *testing.T) {
	bundleDir := t.TempDir()
	writeCheck := func(name, content string) {
		if err := writeFileSync(filepath.Join(bundleDir, name), []byte(content)); err != nil {
			t.Fatalf("writeFileSync(%s): %v", name, err)
		}
	}
	writeCheck("incident_manifest.json", `{"path":"x","kind":"manual","files":[],"total_size_bytes":0,"ft_version":"dev","exported_at":"now"}`)
	writeCheck("leaky.json", `{"message": "sk-ant-REDACTED"}`)

	result, err := Replay(bundleDir, ReplayRules)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if result.Status != "fail" {
		t.Fatalf("expected a leaked secret to fail replay, got %s", result.Status)
	}
}
