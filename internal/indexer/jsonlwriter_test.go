package indexer

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ehrlich-b/ft/internal/recorder"
)

func TestJSONLWriterCommitWritesOneLinePerDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.jsonl")
	w, err := OpenJSONLWriter(path)
	if err != nil {
		t.Fatalf("OpenJSONLWriter: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := w.AddDocument(recorder.IndexDocumentFields{EventID: "evt-" + string(rune('a'+i)), Text: "hello"}); err != nil {
			t.Fatalf("AddDocument: %v", err)
		}
	}
	result, err := w.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if result.DocsAdded != 3 {
		t.Fatalf("expected 3 docs added, got %d", result.DocsAdded)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines on disk, got %d", len(lines))
	}
}

func TestJSONLWriterDeleteAppendsTombstone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.jsonl")
	w, err := OpenJSONLWriter(path)
	if err != nil {
		t.Fatalf("OpenJSONLWriter: %v", err)
	}
	defer w.Close()

	if err := w.DeleteByEventID("evt-a"); err != nil {
		t.Fatalf("DeleteByEventID: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 1 || !strings.Contains(lines[0], `"deleted":true`) {
		t.Fatalf("expected a tombstone line, got %v", lines)
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}
