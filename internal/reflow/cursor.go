package reflow

import (
	"sync/atomic"

	"github.com/ehrlich-b/ft/internal/model"
)

// CursorCounters tracks pass/fail counts for the three checks run after
// every rewrap (spec §4.2: "(i) cursor is within physical bounds, (ii)
// logical projection is defined, (iii) stable-row <-> phys-row
// round-trip holds").
type CursorCounters struct {
	BoundsPass, BoundsFail         int64
	ProjectionPass, ProjectionFail int64
	RoundTripPass, RoundTripFail   int64
}

// ValidateCursor runs the three cursor-consistency checks against s and
// updates counters, returning the overall pass/fail.
func ValidateCursor(s *Screen, counters *CursorCounters) bool {
	ok := true

	if s.Cursor.PhysRow < 0 || s.Cursor.PhysRow >= len(s.Lines) || s.Cursor.PhysCol < 0 || s.Cursor.PhysCol > s.Cols {
		atomic.AddInt64(&counters.BoundsFail, 1)
		ok = false
	} else {
		atomic.AddInt64(&counters.BoundsPass, 1)
	}

	if s.Cursor.LogicalIdx < 0 || s.Cursor.LogicalCol < 0 {
		atomic.AddInt64(&counters.ProjectionFail, 1)
		ok = false
	} else {
		atomic.AddInt64(&counters.ProjectionPass, 1)
	}

	stable := s.StableRow(s.Cursor.PhysRow)
	roundTrip, roundTripOK := s.PhysRow(stable)
	if !roundTripOK || roundTrip != s.Cursor.PhysRow {
		atomic.AddInt64(&counters.RoundTripFail, 1)
		ok = false
	} else {
		atomic.AddInt64(&counters.RoundTripPass, 1)
	}

	return ok
}

// SnapCursorAfterWrap re-projects the cursor's logical position onto
// the rewrapped physical lines. If it lands in column 0 of a
// non-first physical row of its logical line, it is snapped to the end
// of the previous physical row to preserve logical adjacency (spec
// §4.2).
func SnapCursorAfterWrap(lines []model.Line, starts []int, logicalIdx, logicalCol int) (physRow, physCol int) {
	start := starts[logicalIdx]
	row := start
	remaining := logicalCol
	for {
		w := lines[row].Width()
		atLastRowOfLogical := !lines[row].Wrapped || row+1 >= len(lines)
		if remaining <= w || atLastRowOfLogical {
			physRow, physCol = row, remaining
			break
		}
		remaining -= w
		row++
	}
	if physCol == 0 && physRow > start {
		physRow--
		physCol = lines[physRow].Width()
	}
	return physRow, physCol
}
