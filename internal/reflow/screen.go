package reflow

import (
	"hash/fnv"

	uv "github.com/charmbracelet/ultraviolet"

	"github.com/ehrlich-b/ft/internal/model"
)

// LogicalLine is a sequence of physical rows joined by the Wrapped
// flag, reconstructed by walking a screen's physical lines end to end.
type LogicalLine struct {
	Cells []model.Cell
	Flags model.LineFlags
}

// Cursor is a screen's cursor position in both physical and logical
// coordinates.
type Cursor struct {
	PhysRow, PhysCol       int
	LogicalIdx, LogicalCol int
}

// Screen is the reflow engine's view of one pane's terminal grid: the
// physical lines captured from the emulator, the cursor, and a
// monotonic stable-row offset that survives scrolling (spec §4.2
// "Stable row indexing").
type Screen struct {
	Lines                 []model.Line
	Cursor                Cursor
	Rows, Cols            int
	DPI                   float64
	StableRowIndexOffset  int64
}

// AdvanceStableRowOffset bumps the offset by n, called whenever n lines
// leave the visible+scrollback capacity (e.g. on scroll-out).
func (s *Screen) AdvanceStableRowOffset(n int) {
	s.StableRowIndexOffset += int64(n)
}

// StableRow maps a physical row to its stable row number.
func (s *Screen) StableRow(physRow int) int64 {
	return int64(physRow) + s.StableRowIndexOffset
}

// PhysRow maps a stable row number back to a physical row, reporting ok
// = false if the stable row has scrolled out of the current window —
// this is the round-trip the cursor-consistency telemetry validates.
func (s *Screen) PhysRow(stable int64) (row int, ok bool) {
	r := stable - s.StableRowIndexOffset
	if r < 0 || r >= int64(len(s.Lines)) {
		return 0, false
	}
	return int(r), true
}

// LogicalLines walks the physical lines, concatenating across the
// Wrapped flag, and returns the reconstructed logical lines plus a
// parallel slice mapping each logical line's start physical row.
func LogicalLines(lines []model.Line) ([]LogicalLine, []int) {
	var out []LogicalLine
	var starts []int
	i := 0
	for i < len(lines) {
		start := i
		cur := LogicalLine{Flags: lines[i].Flags}
		for {
			cur.Cells = append(cur.Cells, lines[i].Cells...)
			if !lines[i].Wrapped || i+1 >= len(lines) {
				break
			}
			i++
		}
		i++
		out = append(out, cur)
		starts = append(starts, start)
	}
	return out, starts
}

// CursorLogicalPosition computes (logical_idx, logical_x) from a
// physical cursor position and the logical-line start table produced by
// LogicalLines, per spec §4.2 "Cursor logical position ... computed
// before wrapping".
func CursorLogicalPosition(lines []model.Line, starts []int, physRow, physCol int) (idx, col int) {
	idx = 0
	for i, start := range starts {
		if physRow >= start {
			idx = i
		} else {
			break
		}
	}
	col = physCol
	for r := starts[idx]; r < physRow; r++ {
		col += lines[r].Width()
	}
	return idx, col
}

// LayoutSignature hashes a screen's line lengths, wrapped flags, and a
// shape hash of cell widths — the cache-invalidation key described in
// spec §4.2 ("hash of per-line length, wrapped-flag, and shape hash").
func LayoutSignature(lines []model.Line) uint64 {
	h := fnv.New64a()
	for _, l := range lines {
		var buf [10]byte
		n := putUvarint(buf[:], uint64(len(l.Cells)))
		h.Write(buf[:n])
		if l.Wrapped {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
		for _, c := range l.Cells {
			n := putUvarint(buf[:], uint64(c.Width))
			h.Write(buf[:n])
		}
	}
	return h.Sum64()
}

func putUvarint(buf []byte, x uint64) int {
	i := 0
	for x >= 0x80 {
		buf[i] = byte(x) | 0x80
		x >>= 7
		i++
	}
	buf[i] = byte(x)
	return i + 1
}

// CacheKey identifies a wrap table: (physical_cols, dpi).
type CacheKey struct {
	Cols int
	DPI  float64
}

// FromVTScreen adapts the scrollback+grid rendering internal/vtbuf
// exposes into a Screen the reflow engine can operate on. uv.Line is
// charmbracelet/x/vt's row type; this mirrors how internal/vtbuf's
// ScrollOut callback already consumes uv.Line.
func FromVTScreen(rows []uv.Line, cursorRow, cursorCol, cols int, dpi float64) Screen {
	lines := make([]model.Line, len(rows))
	for i, row := range rows {
		lines[i] = fromUVLine(row)
	}
	return Screen{
		Lines:  lines,
		Cursor: Cursor{PhysRow: cursorRow, PhysCol: cursorCol},
		Rows:   len(rows),
		Cols:   cols,
		DPI:    dpi,
	}
}

func fromUVLine(row uv.Line) model.Line {
	rendered := row.Render()
	cells := make([]model.Cell, 0, len(rendered))
	for _, r := range rendered {
		cells = append(cells, model.Cell{Grapheme: string(r), Width: runeWidth(r)})
	}
	return model.Line{Cells: cells}
}

func runeWidth(r rune) int {
	if r == 0 {
		return 0
	}
	return 1
}

// ToVTScreen renders a Screen's lines back into plain strings suitable
// for replaying through internal/vtbuf.PaneBuffer.Write after a resize
// (the emulator itself re-derives its internal grid from the ANSI
// stream, so the reflow engine hands back text, not a uv.Line tree).
func ToVTScreen(s Screen) []string {
	out := make([]string, len(s.Lines))
	for i, l := range s.Lines {
		var b []byte
		for _, c := range l.Cells {
			b = append(b, c.Grapheme...)
		}
		out[i] = string(b)
	}
	return out
}
