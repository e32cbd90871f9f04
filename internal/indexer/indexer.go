// Package indexer incrementally feeds an external search index from the
// recorder's append-only log, with at-most-one-concurrent-run per
// consumer id and exactly-once effect on the index across crashes.
// Grounded on
// original_source/crates/frankenterm-core/src/tantivy_ingest.rs.
package indexer

import (
	"errors"
	"fmt"
	"io"

	"github.com/ehrlich-b/ft/internal/model"
	"github.com/ehrlich-b/ft/internal/recorder"
	"github.com/ehrlich-b/ft/internal/storage"
)

// AddResult is add_document's outcome (spec §6.3).
type AddResult int

const (
	AddOK AddResult = iota
	AddRejected
	AddTransient
	AddCommitFailed
)

// CommitResult reports what a commit() call actually persisted.
type CommitResult struct {
	DocsAdded   int
	DocsDeleted int
	SegmentCount int
}

// IndexWriter is the external search-index contract (spec §6.3). It is
// not required to be thread-safe; the indexer serialises all calls.
type IndexWriter interface {
	AddDocument(doc recorder.IndexDocumentFields) (AddResult, error)
	Commit() (CommitResult, error)
	DeleteByEventID(eventID string) error
}

// Config tunes one indexer run.
type Config struct {
	ConsumerID    string
	BatchSize     int
	MaxBatches    int
	DedupOnReplay bool
}

// DefaultConfig returns the spec's documented batch size.
func DefaultConfig(consumerID string) Config {
	return Config{ConsumerID: consumerID, BatchSize: 512, DedupOnReplay: true}
}

// RunResult summarizes one indexer run (spec §4.3).
type RunResult struct {
	EventsRead       int
	EventsIndexed    int
	EventsSkipped    int
	BatchesCommitted int
	FinalOrdinal     int64
	CaughtUp         bool
}

// errAbortRun signals a failure that must preserve the previous
// checkpoint (log I/O, deserialization, or commit failure).
type errAbortRun struct{ cause error }

func (e errAbortRun) Error() string { return fmt.Sprintf("indexer run aborted: %v", e.cause) }
func (e errAbortRun) Unwrap() error { return e.cause }

// Run executes one indexer pass over logPath, resuming from cfg's
// consumer checkpoint in store (if any), writing through writer.
func Run(logPath string, store storage.CheckpointStore, writer IndexWriter, cfg Config) (RunResult, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 512
	}

	cp, hasCP, err := store.ReadCheckpoint(cfg.ConsumerID)
	if err != nil {
		return RunResult{}, errAbortRun{err}
	}

	var reader *recorder.Reader
	if hasCP {
		reader, err = recorder.OpenReaderAtOffset(logPath, cp.UptoOffset, 0)
		if err != nil {
			return RunResult{}, errAbortRun{err}
		}
		// The checkpointed ordinal itself isn't tracked on disk beyond
		// UptoOffset, so re-derive it by reading the record at that offset
		// and skipping past it (it was already consumed).
		rec, err := reader.Next()
		if err != nil && err != io.EOF && !errors.Is(err, recorder.ErrTornTail) {
			reader.Close()
			return RunResult{}, errAbortRun{err}
		}
		if err == nil {
			_ = rec // already consumed; reader has advanced past it
		}
	} else {
		reader, err = recorder.OpenReader(logPath)
		if err != nil {
			return RunResult{}, errAbortRun{err}
		}
	}
	defer reader.Close()

	var result RunResult
	batches := 0
	for {
		if cfg.MaxBatches > 0 && batches >= cfg.MaxBatches {
			break
		}

		batch, err := reader.ReadBatch(cfg.BatchSize)
		if err != nil {
			return result, errAbortRun{err}
		}
		result.EventsRead += len(batch)

		var lastOffset model.RecorderOffset
		hadRecords := len(batch) > 0

		for _, rec := range batch {
			lastOffset = rec.Offset

			if rec.Event.SchemaVersion != model.RecorderSchemaVersion {
				result.EventsSkipped++
				continue
			}

			doc := recorder.MapEventToDocument(rec)

			if cfg.DedupOnReplay {
				_ = writer.DeleteByEventID(doc.EventID) // missing document is not an error
			}

			addRes, err := writer.AddDocument(doc)
			if err != nil {
				return result, errAbortRun{err}
			}
			switch addRes {
			case AddOK:
				result.EventsIndexed++
			case AddRejected:
				result.EventsSkipped++
			case AddTransient, AddCommitFailed:
				return result, errAbortRun{fmt.Errorf("add_document returned %v for event %s", addRes, doc.EventID)}
			}
		}

		if hadRecords {
			if _, err := writer.Commit(); err != nil {
				return result, errAbortRun{err}
			}
			result.BatchesCommitted++
			batches++

			newCP := model.RecorderCheckpoint{
				ConsumerID:    cfg.ConsumerID,
				UptoOffset:    lastOffset.ByteOffset,
				SchemaVersion: model.RecorderSchemaVersion,
			}
			if err := store.CommitCheckpoint(newCP); err != nil {
				return result, errAbortRun{err}
			}
			result.FinalOrdinal = lastOffset.Ordinal
		}

		if len(batch) < cfg.BatchSize {
			result.CaughtUp = true
			break
		}
	}

	return result, nil
}

// LagSnapshot reports how far a consumer's checkpoint trails the log
// head, grounded on tantivy_ingest.rs's IndexerLagSnapshot/
// compute_indexer_lag.
type LagSnapshot struct {
	LogHeadOrdinal int64
	IndexerOrdinal int64
}

// Lag returns head minus the consumer's checkpoint ordinal; if the
// consumer has never checkpointed, lag is head+1.
func (s LagSnapshot) Lag() int64 {
	if s.IndexerOrdinal < 0 {
		return s.LogHeadOrdinal + 1
	}
	return s.LogHeadOrdinal - s.IndexerOrdinal
}

// ComputeLag reads the log's current head ordinal and the consumer's
// checkpoint to build a LagSnapshot.
func ComputeLag(logPath string, store storage.CheckpointStore, consumerID string) (LagSnapshot, error) {
	r, err := recorder.OpenReader(logPath)
	if err != nil {
		return LagSnapshot{}, err
	}
	defer r.Close()

	var head int64 = -1
	for {
		rec, err := r.Next()
		if err == io.EOF || errors.Is(err, recorder.ErrTornTail) {
			break
		}
		if err != nil {
			return LagSnapshot{}, err
		}
		head = rec.Offset.Ordinal
	}

	cp, ok, err := store.ReadCheckpoint(consumerID)
	if err != nil {
		return LagSnapshot{}, err
	}
	indexerOrdinal := int64(-1)
	if ok {
		// UptoOffset names the last consumed record's byte offset, not its
		// ordinal directly; re-derive the ordinal by re-scanning once.
		r2, err := recorder.OpenReader(logPath)
		if err != nil {
			return LagSnapshot{}, err
		}
		defer r2.Close()
		for {
			rec, err := r2.Next()
			if err == io.EOF || errors.Is(err, recorder.ErrTornTail) {
				break
			}
			if err != nil {
				return LagSnapshot{}, err
			}
			if rec.Offset.ByteOffset == cp.UptoOffset {
				indexerOrdinal = rec.Offset.Ordinal
				break
			}
		}
	}

	return LagSnapshot{LogHeadOrdinal: head, IndexerOrdinal: indexerOrdinal}, nil
}
