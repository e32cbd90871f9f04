package crashbundle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Summary describes one crash bundle discovered on disk.
type Summary struct {
	Path     string
	Manifest *Manifest
	Report   *Report
}

// ListCrashBundles scans crashDir for wa_crash_* directories, parses
// their manifest and report, and returns up to limit results sorted
// newest first. Unreadable or incomplete bundles are silently skipped.
func ListCrashBundles(crashDir string, limit int) []Summary {
	entries, err := os.ReadDir(crashDir)
	if err != nil {
		return nil
	}

	var bundles []Summary
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "wa_crash_") {
			continue
		}
		path := filepath.Join(crashDir, e.Name())

		var manifest *Manifest
		if data, err := os.ReadFile(filepath.Join(path, "manifest.json")); err == nil {
			var m Manifest
			if json.Unmarshal(data, &m) == nil {
				manifest = &m
			}
		}
		var report *Report
		if data, err := os.ReadFile(filepath.Join(path, "crash_report.json")); err == nil {
			var r Report
			if json.Unmarshal(data, &r) == nil {
				report = &r
			}
		}
		if manifest == nil && report == nil {
			continue
		}
		bundles = append(bundles, Summary{Path: path, Manifest: manifest, Report: report})
	}

	sort.Slice(bundles, func(i, j int) bool {
		return tsOf(bundles[i]) > tsOf(bundles[j])
	})
	if limit > 0 && len(bundles) > limit {
		bundles = bundles[:limit]
	}
	return bundles
}

func tsOf(s Summary) int64 {
	if s.Report != nil {
		return s.Report.TimestampS
	}
	return 0
}

// LatestCrashBundle returns the most recent crash bundle in crashDir, if any.
func LatestCrashBundle(crashDir string) (Summary, bool) {
	bundles := ListCrashBundles(crashDir, 1)
	if len(bundles) == 0 {
		return Summary{}, false
	}
	return bundles[0], true
}
