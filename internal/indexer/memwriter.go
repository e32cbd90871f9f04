package indexer

import (
	"sync"

	"github.com/ehrlich-b/ft/internal/recorder"
)

// MemWriter is an in-memory reference IndexWriter for tests — not the
// production search backend (external per spec.md), but the interface
// production code is written against.
type MemWriter struct {
	mu      sync.Mutex
	pending []recorder.IndexDocumentFields
	docs    map[string]recorder.IndexDocumentFields
	deleted map[string]bool
}

// NewMemWriter returns an empty MemWriter.
func NewMemWriter() *MemWriter {
	return &MemWriter{docs: make(map[string]recorder.IndexDocumentFields), deleted: make(map[string]bool)}
}

func (w *MemWriter) AddDocument(doc recorder.IndexDocumentFields) (AddResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, doc)
	delete(w.deleted, doc.EventID)
	return AddOK, nil
}

func (w *MemWriter) Commit() (CommitResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	added := 0
	for _, doc := range w.pending {
		if _, existed := w.docs[doc.EventID]; !existed {
			added++
		}
		w.docs[doc.EventID] = doc
	}
	w.pending = nil
	return CommitResult{DocsAdded: added, SegmentCount: len(w.docs)}, nil
}

func (w *MemWriter) DeleteByEventID(eventID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.docs, eventID)
	w.deleted[eventID] = true
	return nil
}

// Documents returns a snapshot of every committed document, for
// assertions in tests.
func (w *MemWriter) Documents() map[string]recorder.IndexDocumentFields {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]recorder.IndexDocumentFields, len(w.docs))
	for k, v := range w.docs {
		out[k] = v
	}
	return out
}
