package indexer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ehrlich-b/ft/internal/recorder"
)

// JSONLWriter is the CLI's default IndexWriter: it appends one JSON
// document per line to a file, since the real tantivy-equivalent search
// backend is external per spec.md §1. Grounded on the same length-
// prefix-free JSON convention recorder.Writer already uses for the
// append log.
type JSONLWriter struct {
	path    string
	f       *os.File
	w       *bufio.Writer
	pending []recorder.IndexDocumentFields
}

// OpenJSONLWriter opens (creating if necessary) path for append and
// returns a writer ready to receive documents.
func OpenJSONLWriter(path string) (*JSONLWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	return &JSONLWriter{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

func (w *JSONLWriter) AddDocument(doc recorder.IndexDocumentFields) (AddResult, error) {
	w.pending = append(w.pending, doc)
	return AddOK, nil
}

// Commit flushes every pending document as one JSON line each, then
// fsyncs the underlying file so a crash after Commit can't lose a
// batch the caller believes is durable.
func (w *JSONLWriter) Commit() (CommitResult, error) {
	added := len(w.pending)
	for _, doc := range w.pending {
		line, err := json.Marshal(doc)
		if err != nil {
			return CommitResult{}, fmt.Errorf("marshal index document: %w", err)
		}
		if _, err := w.w.Write(line); err != nil {
			return CommitResult{}, err
		}
		if err := w.w.WriteByte('\n'); err != nil {
			return CommitResult{}, err
		}
	}
	w.pending = nil
	if err := w.w.Flush(); err != nil {
		return CommitResult{}, err
	}
	if err := w.f.Sync(); err != nil {
		return CommitResult{}, err
	}
	return CommitResult{DocsAdded: added}, nil
}

// DeleteByEventID appends a tombstone record; a JSONL index is append-
// only, so deletion is a second line a downstream consumer must
// reconcile rather than an in-place rewrite.
func (w *JSONLWriter) DeleteByEventID(eventID string) error {
	line, err := json.Marshal(map[string]any{"event_id": eventID, "deleted": true})
	if err != nil {
		return err
	}
	if _, err := w.w.Write(line); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes and closes the underlying file.
func (w *JSONLWriter) Close() error {
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
