package reflow

import (
	"context"

	"github.com/ehrlich-b/ft/internal/model"
)

// ResizeConfig tunes one Engine's behavior.
type ResizeConfig struct {
	CostModel         CostModel
	ReadabilityGate   bool
	ReadabilityPolicy ReadabilityPolicy
}

// DefaultResizeConfig returns the spec's documented defaults with the
// readability gate off (spec §9: "Readability-gate thresholds default
// off").
func DefaultResizeConfig() ResizeConfig {
	return ResizeConfig{CostModel: DefaultCostModel()}
}

// Engine ties the wrap planner, cache, cursor telemetry, and
// last-good-frame rollback into the single entry point the observation
// runtime calls on pane resize.
type Engine struct {
	cfg      ResizeConfig
	cache    *Cache
	lastGood *LastGoodFrameStore
	cursors  CursorCounters
	cold     *ColdScrollbackWorker

	lastReadability ReadabilityRecord
}

// NewEngine returns an Engine configured with cfg.
func NewEngine(cfg ResizeConfig) *Engine {
	return &Engine{
		cfg:      cfg,
		cache:    NewCache(),
		lastGood: NewLastGoodFrameStore(),
		cold:     NewColdScrollbackWorker(),
	}
}

// ResizeResult is what Resize hands back to the caller.
type ResizeResult struct {
	Screen         Screen
	RolledBack     bool
	Rollback       RollbackRecord
	Readability    *ReadabilityRecord
	ColdBatches    int
}

// Resize re-wraps screen's logical lines for (newCols, newRows, dpi),
// classifying lines by viewport proximity, running the bounded
// Knuth-Plass planner over the viewport/near classes synchronously and
// dispatching the cold-scrollback class to the background worker (spec
// §4.2).
func (e *Engine) Resize(screen Screen, newRows, newCols int, dpi float64, visibleStart, visibleEnd int, lineageID string, seqno int64, rewrapCold RewrapFunc) ResizeResult {
	if dpi != screen.DPI {
		e.cache.InvalidateDPI()
	}

	logical, starts := LogicalLines(screen.Lines)
	signature := LayoutSignature(screen.Lines)
	e.cache.SetLogicalLines(logical, signature)

	cursorLogicalIdx, cursorLogicalCol := CursorLogicalPosition(screen.Lines, starts, screen.Cursor.PhysRow, screen.Cursor.PhysCol)

	key := CacheKey{Cols: newCols, DPI: dpi}
	plans, cached := e.cache.Lookup(key)
	var wrapPlans []WrapPlan
	if cached {
		wrapPlans = plans.Plans
	} else {
		wrapPlans = make([]WrapPlan, len(logical))
		for i, ll := range logical {
			tokens := tokensForLine(ll)
			wrapPlans[i] = BoundedMonospaceWrapPlan(tokens, newCols, e.cfg.CostModel)
		}
		e.cache.Store(key, wrapPlans)
	}

	classes := ClassifyLines(len(logical), visibleStart, visibleEnd)
	batches := BuildPlan(classes)

	var coldCount int
	if e.cold != nil && rewrapCold != nil {
		var cold []Batch
		for _, b := range batches {
			if b.Class == ClassColdScrollback {
				cold = append(cold, b)
			}
		}
		coldCount = len(cold)
		if coldCount > 0 {
			e.cold.Start(context.Background(), cold, rewrapCold)
		}
	}

	newLines := materialize(logical, wrapPlans)

	newPhysRow, newPhysCol := SnapCursorAfterWrap(newLines, breakStarts(wrapPlans), cursorLogicalIdx, cursorLogicalCol)

	result := Screen{
		Lines:                newLines,
		Cursor:               Cursor{PhysRow: newPhysRow, PhysCol: newPhysCol, LogicalIdx: cursorLogicalIdx, LogicalCol: cursorLogicalCol},
		Rows:                 newRows,
		Cols:                 newCols,
		DPI:                  dpi,
		StableRowIndexOffset: screen.StableRowIndexOffset,
	}

	ok := ValidateCursor(&result, &e.cursors)
	if !ok || len(result.Lines) < newRows {
		if snap, rec, had := e.lastGood.Rollback("post_resize_validity_check_failed"); had {
			restored := restoreScreen(snap, screen.Cursor)
			return ResizeResult{Screen: restored, RolledBack: true, Rollback: rec, ColdBatches: coldCount}
		}
	}

	e.lastGood.Snapshot(result.Lines, newRows, newCols, dpi, seqno, lineageID)

	var readability *ReadabilityRecord
	if e.cfg.ReadabilityGate {
		var cards []LineScorecard
		for i, ll := range logical {
			tokens := tokensForLine(ll)
			cards = append(cards, Score(i, wrapPlans[i], tokens, newCols, e.cfg.CostModel))
		}
		summary := Aggregate(cards)
		rec := Evaluate(summary, e.cfg.ReadabilityPolicy)
		e.lastReadability = rec
		readability = &rec
	}

	return ResizeResult{Screen: result, Readability: readability, ColdBatches: coldCount}
}

// LastGoodMetrics exposes the engine's last-good-frame telemetry.
func (e *Engine) LastGoodMetrics() LastGoodMetrics { return e.lastGood.Metrics() }

// CursorMetrics exposes the engine's cursor-consistency telemetry.
func (e *Engine) CursorMetrics() CursorCounters { return e.cursors }

// ColdWorkerMetrics exposes the cold-scrollback worker's telemetry.
func (e *Engine) ColdWorkerMetrics() Metrics { return e.cold.Snapshot() }

func tokensForLine(ll LogicalLine) []Token {
	tokens := make([]Token, len(ll.Cells))
	for i, c := range ll.Cells {
		tokens[i] = Token{Width: c.Width}
	}
	return tokens
}

// materialize splits each logical line's cells at its chosen break
// offsets into physical model.Line rows with Wrapped set on every row
// but the last.
func materialize(logical []LogicalLine, plans []WrapPlan) []model.Line {
	var out []model.Line
	for i, ll := range logical {
		offsets := plans[i].BreakOffsets
		start := 0
		for j, end := range offsets {
			cells := make([]model.Cell, end-start)
			copy(cells, ll.Cells[start:end])
			out = append(out, model.Line{Cells: cells, Flags: ll.Flags, Wrapped: j < len(offsets)-1})
			start = end
		}
		if len(offsets) == 0 {
			out = append(out, model.Line{Flags: ll.Flags})
		}
	}
	return out
}

// breakStarts returns, for each logical line, the physical row index
// its first wrapped row begins at — the same table LogicalLines would
// hand back for the materialized screen.
func breakStarts(plans []WrapPlan) []int {
	starts := make([]int, len(plans))
	row := 0
	for i, p := range plans {
		starts[i] = row
		n := len(p.BreakOffsets)
		if n == 0 {
			n = 1
		}
		row += n
	}
	return starts
}

// restoreScreen rebuilds a Screen from a last-good snapshot, preserving
// the cursor that was active immediately before the resize attempt that
// triggered the rollback (spec §4.2: rollback "returns the original
// cursor").
func restoreScreen(snap *model.LastGoodFrame, cursor Cursor) Screen {
	lines := make([]model.Line, len(snap.Cells))
	for i, cells := range snap.Cells {
		lines[i] = model.Line{Cells: cells}
	}
	return Screen{Lines: lines, Cursor: cursor, Rows: snap.Rows, Cols: snap.Cols, DPI: snap.DPI}
}
