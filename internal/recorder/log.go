// Package recorder implements the append-only binary log described in
// spec §6.1 and the lexical index document mapping in §6.2, grounded
// line-for-line on
// original_source/crates/frankenterm-core/src/tantivy_ingest.rs.
package recorder

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ehrlich-b/ft/internal/model"
)

// ErrTornTail is returned by Reader.Next when the remaining bytes in
// the log are insufficient to satisfy a record's declared length —
// treated as EOF per spec §6.1, never as corruption.
var ErrTornTail = errors.New("recorder: torn tail")

// Writer appends records to a single log file, single-writer-thread
// style (spec §5 "appending to the recorder log is totally ordered by a
// single writer thread").
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	next int64 // next ordinal to assign
}

// OpenWriter opens path for appending, computing the next ordinal by
// scanning any existing records.
func OpenWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log for append: %w", err)
	}

	next, err := countRecords(path)
	if err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek to end: %w", err)
	}

	return &Writer{f: f, w: bufio.NewWriter(f), next: next}, nil
}

func countRecords(path string) (int64, error) {
	r, err := OpenReader(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	var n int64
	for {
		_, err := r.Next()
		if err == io.EOF || errors.Is(err, ErrTornTail) {
			break
		}
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// Append writes ev as one length-prefixed JSON record, returning its
// assigned RecorderOffset. Ordinal and ByteOffset are both strictly
// monotonic (spec §8 invariant 2).
func (w *Writer) Append(ev model.RecorderEvent) (model.RecorderOffset, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	payload, err := json.Marshal(ev)
	if err != nil {
		return model.RecorderOffset{}, fmt.Errorf("marshal recorder event: %w", err)
	}

	offset, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return model.RecorderOffset{}, fmt.Errorf("seek current: %w", err)
	}
	// account for buffered-but-unflushed bytes
	offset += int64(w.w.Buffered())

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.w.Write(lenBuf[:]); err != nil {
		return model.RecorderOffset{}, err
	}
	if _, err := w.w.Write(payload); err != nil {
		return model.RecorderOffset{}, err
	}
	if err := w.w.Flush(); err != nil {
		return model.RecorderOffset{}, fmt.Errorf("flush record: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return model.RecorderOffset{}, fmt.Errorf("fsync record: %w", err)
	}

	ordinal := w.next
	w.next++

	return model.RecorderOffset{ByteOffset: offset, Ordinal: ordinal}, nil
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.f.Close()
}

// Reader sequentially reads records from a log file, grounded on
// tantivy_ingest.rs's AppendLogReader (open/open_at_ordinal/
// open_at_offset/skip_to_ordinal/next_record/read_batch/byte_offset/
// next_ordinal).
type Reader struct {
	f       *os.File
	r       *bufio.Reader
	offset  int64
	ordinal int64
}

// OpenReader opens path for sequential reading from the start.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			f, err = os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
			if err != nil {
				return nil, fmt.Errorf("create empty log: %w", err)
			}
		} else {
			return nil, fmt.Errorf("open log for read: %w", err)
		}
	}
	return &Reader{f: f, r: bufio.NewReader(f)}, nil
}

// OpenReaderAtOffset opens path and seeks directly to byteOffset,
// assuming ordinal is the ordinal of the record at that offset.
func OpenReaderAtOffset(path string, byteOffset, ordinal int64) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log for read: %w", err)
	}
	if _, err := f.Seek(byteOffset, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek to offset %d: %w", byteOffset, err)
	}
	return &Reader{f: f, r: bufio.NewReader(f), offset: byteOffset, ordinal: ordinal}, nil
}

// SkipToOrdinal advances past ord-target records from the current
// position, used when resuming from a checkpoint that named the last
// *consumed* record (the indexer must skip past it, not re-read it).
func (r *Reader) SkipToOrdinal(target int64) error {
	for r.ordinal < target {
		if _, err := r.Next(); err != nil {
			return err
		}
	}
	return nil
}

// ByteOffset returns the offset of the next record to be read.
func (r *Reader) ByteOffset() int64 { return r.offset }

// NextOrdinal returns the ordinal of the next record to be read.
func (r *Reader) NextOrdinal() int64 { return r.ordinal }

// Next reads the record at the current position, returning its
// RecorderEvent and offset. A torn tail (insufficient bytes to satisfy
// the declared length) returns ErrTornTail and must not advance the
// reader's recorded offset, so a subsequent writer append can be read
// once the writer catches up.
func (r *Reader) Next() (Record, error) {
	startOffset := r.offset

	var lenBuf [4]byte
	n, err := io.ReadFull(r.r, lenBuf[:])
	if err == io.EOF {
		return Record{}, io.EOF
	}
	if err != nil {
		// partial length prefix: torn tail, not an error
		_ = n
		return Record{}, ErrTornTail
	}

	length := binary.LittleEndian.Uint32(lenBuf[:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return Record{}, ErrTornTail
	}

	var ev model.RecorderEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Record{}, fmt.Errorf("unmarshal record at offset %d: %w", startOffset, err)
	}

	ordinal := r.ordinal
	r.ordinal++
	r.offset = startOffset + 4 + int64(length)

	return Record{
		Event:  ev,
		Offset: model.RecorderOffset{ByteOffset: startOffset, Ordinal: ordinal},
	}, nil
}

// ReadBatch reads up to n records, stopping early at EOF/torn-tail.
func (r *Reader) ReadBatch(n int) ([]Record, error) {
	batch := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		rec, err := r.Next()
		if err == io.EOF || errors.Is(err, ErrTornTail) {
			break
		}
		if err != nil {
			return batch, err
		}
		batch = append(batch, rec)
	}
	return batch, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

// Record pairs a decoded RecorderEvent with its log position.
type Record struct {
	Event  model.RecorderEvent
	Offset model.RecorderOffset
}
