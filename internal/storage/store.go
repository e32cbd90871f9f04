// Package storage implements the observation runtime's persistence
// layer: pane registry, captured segments, detection events, indexer
// checkpoints, and maintenance records. Grounded on the teacher's
// internal/store/store.go (sql.Open("sqlite", dsn), WAL pragma,
// go:embed migrations/*.sql, sequential migration runner).
package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ehrlich-b/ft/internal/model"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MaintenanceRecord logs one maintenance pass (checkpoint, vacuum,
// retention cleanup) for observability.
type MaintenanceRecord struct {
	Kind       string
	StartedMS  int64
	FinishedMS int64
	Detail     map[string]any
}

// PageStats reports SQLite's page_count/freelist_count pragmas.
type PageStats struct {
	PageCount int64
	FreePages int64
}

// CheckpointResult reports the outcome of a WAL checkpoint/optimize pass.
type CheckpointResult struct {
	WALPages  int64
	Optimized bool
}

// PersistResult is what persist_segment returns: the persisted segment
// plus an optional synthesized gap marker when a resync occurred.
type PersistResult struct {
	Segment model.CapturedSegment
	Gap     *model.CapturedSegment
}

// Handle is the storage contract consumed by the observation runtime,
// indexer, and crash/incident bundle core (spec §6.4/§6.5).
type Handle interface {
	UpsertPane(p model.Pane) error
	RecordEvent(e model.DetectionEvent) (int64, error)
	PersistSegment(seg model.CapturedSegment) (PersistResult, error)
	GetMaxSeq(paneID uint64) (int64, bool, error)
	Checkpoint() (CheckpointResult, error)
	RetentionCleanup(cutoffMS int64) error
	PurgeAuditActionsBefore(cutoffMS int64) error
	DatabasePageStats() (PageStats, error)
	Vacuum() error
	RecordMaintenance(rec MaintenanceRecord) error
	WriteQueueDepth() int
	WriteQueueCapacity() int
	IsWritable() bool
	Close() error
}

// CheckpointStore is the indexer's resume-point contract (spec §6.5).
type CheckpointStore interface {
	ReadCheckpoint(consumerID string) (model.RecorderCheckpoint, bool, error)
	CommitCheckpoint(cp model.RecorderCheckpoint) error
}

// SQLiteHandle implements Handle and CheckpointStore over a single
// modernc.org/sqlite-backed *sql.DB. All writes funnel through a single
// mutex, mirroring the teacher's single-open-connection convention and
// spec §5's "storage handle: exclusive access via an async mutex".
type SQLiteHandle struct {
	db *sql.DB

	mu          sync.Mutex
	writable    bool
	queueDepth  int
	queueCap    int
	lastWriteMS int64
}

// Open creates (or opens) the SQLite database at dsn, applies WAL/foreign
// key pragmas, and runs any unapplied migrations.
func Open(dsn string) (*SQLiteHandle, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	h := &SQLiteHandle{db: db, writable: true, queueCap: 1024}
	if err := h.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return h, nil
}

func (h *SQLiteHandle) migrate() error {
	if _, err := h.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var applied int
		if err := h.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", f).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", f, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}

		tx, err := h.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", f, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", f); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", f, err)
		}
	}
	return nil
}

// Close releases the underlying database connection.
func (h *SQLiteHandle) Close() error { return h.db.Close() }

// DB exposes the raw handle for packages (e.g. crashbundle) that need to
// read metadata without growing the Handle interface.
func (h *SQLiteHandle) DB() *sql.DB { return h.db }

func (h *SQLiteHandle) UpsertPane(p model.Pane) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.db.Exec(`INSERT INTO panes (id, uuid, origin_domain, observed, ignore_reason, first_seen_ms, last_seen_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			uuid=excluded.uuid, origin_domain=excluded.origin_domain, observed=excluded.observed,
			ignore_reason=excluded.ignore_reason, last_seen_ms=excluded.last_seen_ms`,
		p.ID, p.UUID, p.OriginDomain, p.Observed, p.IgnoreReason, p.FirstSeenMS, p.LastSeenMS)
	if err != nil {
		return fmt.Errorf("upsert pane %d: %w", p.ID, err)
	}
	h.touch()
	return nil
}

func (h *SQLiteHandle) RecordEvent(e model.DetectionEvent) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	extractedJSON, err := marshalExtracted(e.Extracted)
	if err != nil {
		return 0, err
	}

	res, err := h.db.Exec(`INSERT INTO events
		(pane_id, rule_id, event_type, severity, confidence, matched_text, extracted_json, segment_id, detected_at_ms, dedupe_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dedupe_key) DO NOTHING`,
		e.PaneID, e.RuleID, e.EventType, e.Severity, e.Confidence, e.MatchedText, extractedJSON, e.SegmentID, e.DetectedAtMS, e.DedupeKey())
	if err != nil {
		return 0, fmt.Errorf("record event: %w", err)
	}
	h.touch()
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("event insert id: %w", err)
	}
	return id, nil
}

func (h *SQLiteHandle) PersistSegment(seg model.CapturedSegment) (PersistResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var maxSeq int64
	var hasRow bool
	row := h.db.QueryRow(`SELECT max_seq FROM cursors WHERE pane_id = ?`, seg.PaneID)
	switch err := row.Scan(&maxSeq); err {
	case nil:
		hasRow = true
	case sql.ErrNoRows:
		hasRow = false
	default:
		return PersistResult{}, fmt.Errorf("read cursor for pane %d: %w", seg.PaneID, err)
	}

	var gap *model.CapturedSegment
	if hasRow && seg.Seq != maxSeq+1 {
		g := model.CapturedSegment{
			PaneID:       seg.PaneID,
			Seq:          maxSeq + 1,
			CapturedAtMS: seg.CapturedAtMS,
			GapReason:    model.GapReasonResync,
		}
		gap = &g
	}

	_, err := h.db.Exec(`INSERT INTO segments (pane_id, seq, captured_at_ms, content, gap_reason)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(pane_id, seq) DO NOTHING`,
		seg.PaneID, seg.Seq, seg.CapturedAtMS, seg.Content, string(seg.GapReason))
	if err != nil {
		return PersistResult{}, fmt.Errorf("persist segment: %w", err)
	}

	_, err = h.db.Exec(`INSERT INTO cursors (pane_id, max_seq) VALUES (?, ?)
		ON CONFLICT(pane_id) DO UPDATE SET max_seq = excluded.max_seq`,
		seg.PaneID, seg.Seq)
	if err != nil {
		return PersistResult{}, fmt.Errorf("advance cursor: %w", err)
	}
	h.touch()

	return PersistResult{Segment: seg, Gap: gap}, nil
}

func (h *SQLiteHandle) GetMaxSeq(paneID uint64) (int64, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var maxSeq int64
	err := h.db.QueryRow(`SELECT max_seq FROM cursors WHERE pane_id = ?`, paneID).Scan(&maxSeq)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get max seq for pane %d: %w", paneID, err)
	}
	return maxSeq, true, nil
}

func (h *SQLiteHandle) Checkpoint() (CheckpointResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return CheckpointResult{}, fmt.Errorf("wal checkpoint: %w", err)
	}
	if _, err := h.db.Exec("PRAGMA optimize"); err != nil {
		return CheckpointResult{}, fmt.Errorf("optimize: %w", err)
	}
	var pageCount int64
	_ = h.db.QueryRow("PRAGMA page_count").Scan(&pageCount)
	return CheckpointResult{WALPages: pageCount, Optimized: true}, nil
}

func (h *SQLiteHandle) RetentionCleanup(cutoffMS int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.db.Exec(`DELETE FROM segments WHERE captured_at_ms < ?`, cutoffMS); err != nil {
		return fmt.Errorf("retention cleanup segments: %w", err)
	}
	if _, err := h.db.Exec(`DELETE FROM events WHERE detected_at_ms < ?`, cutoffMS); err != nil {
		return fmt.Errorf("retention cleanup events: %w", err)
	}
	h.touch()
	return nil
}

// PurgeAuditActionsBefore exists to satisfy spec §6.4's consumed
// interface; ft observes passively and records no audit actions, so this
// is a documented no-op rather than a dropped method.
func (h *SQLiteHandle) PurgeAuditActionsBefore(cutoffMS int64) error { return nil }

func (h *SQLiteHandle) DatabasePageStats() (PageStats, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var pageCount, freelist int64
	if err := h.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return PageStats{}, err
	}
	if err := h.db.QueryRow("PRAGMA freelist_count").Scan(&freelist); err != nil {
		return PageStats{}, err
	}
	return PageStats{PageCount: pageCount, FreePages: freelist}, nil
}

func (h *SQLiteHandle) Vacuum() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.db.Exec("VACUUM")
	return err
}

func (h *SQLiteHandle) RecordMaintenance(rec MaintenanceRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	detailJSON, err := marshalExtracted(rec.Detail)
	if err != nil {
		return err
	}
	_, err = h.db.Exec(`INSERT INTO maintenance_log (kind, started_ms, finished_ms, detail_json)
		VALUES (?, ?, ?, ?)`, rec.Kind, rec.StartedMS, rec.FinishedMS, detailJSON)
	return err
}

func (h *SQLiteHandle) WriteQueueDepth() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.queueDepth
}

func (h *SQLiteHandle) WriteQueueCapacity() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.queueCap
}

func (h *SQLiteHandle) IsWritable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writable
}

// ReadCheckpoint implements CheckpointStore.
func (h *SQLiteHandle) ReadCheckpoint(consumerID string) (model.RecorderCheckpoint, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var cp model.RecorderCheckpoint
	err := h.db.QueryRow(`SELECT consumer_id, upto_offset, schema_version, committed_at_ms
		FROM checkpoints WHERE consumer_id = ?`, consumerID).
		Scan(&cp.ConsumerID, &cp.UptoOffset, &cp.SchemaVersion, &cp.CommittedAtMS)
	if err == sql.ErrNoRows {
		return model.RecorderCheckpoint{}, false, nil
	}
	if err != nil {
		return model.RecorderCheckpoint{}, false, fmt.Errorf("read checkpoint %s: %w", consumerID, err)
	}
	return cp, true, nil
}

// CommitCheckpoint implements CheckpointStore. Attempts to move the
// checkpoint backward are refused, per spec §6.5.
func (h *SQLiteHandle) CommitCheckpoint(cp model.RecorderCheckpoint) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var existing int64
	err := h.db.QueryRow(`SELECT upto_offset FROM checkpoints WHERE consumer_id = ?`, cp.ConsumerID).Scan(&existing)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("read existing checkpoint %s: %w", cp.ConsumerID, err)
	}
	if err == nil && cp.UptoOffset < existing {
		return fmt.Errorf("checkpoint for %s would move backward (%d < %d)", cp.ConsumerID, cp.UptoOffset, existing)
	}

	_, err = h.db.Exec(`INSERT INTO checkpoints (consumer_id, upto_offset, schema_version, committed_at_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(consumer_id) DO UPDATE SET
			upto_offset=excluded.upto_offset, schema_version=excluded.schema_version, committed_at_ms=excluded.committed_at_ms`,
		cp.ConsumerID, cp.UptoOffset, cp.SchemaVersion, cp.CommittedAtMS)
	if err != nil {
		return fmt.Errorf("commit checkpoint %s: %w", cp.ConsumerID, err)
	}
	h.touch()
	return nil
}

func (h *SQLiteHandle) touch() {
	h.lastWriteMS = time.Now().UnixMilli()
}

func marshalExtracted(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	return jsonMarshalString(m)
}
