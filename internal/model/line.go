package model

// LineFlags is a bit-set of per-line screen attributes, grounded on
// frankenterm/surface/src/line/line.rs's Line struct.
type LineFlags uint16

const (
	LineDoubleWidth LineFlags = 1 << iota
	LineDoubleHeightTop
	LineDoubleHeightBottom
	LineBidiEnabled
	LineRTL
	LineAutoDetectDirection
	LineScanned
	LineHasHyperlink
)

// Has reports whether every bit in want is set.
func (f LineFlags) Has(want LineFlags) bool { return f&want == want }

// Cell is one terminal grid cell: a grapheme cluster plus its display
// attributes, adapted from charmbracelet/x/vt's cell model (see
// internal/vtbuf and internal/reflow's FromVTScreen/ToVTScreen).
type Cell struct {
	Grapheme string
	Width    int
	Style    CellStyle
}

// CellStyle mirrors the subset of charmbracelet/ultraviolet's style
// attributes the reflow engine needs to preserve across rewraps.
type CellStyle struct {
	Fg        uint32
	Bg        uint32
	Bold      bool
	Italic    bool
	Underline bool
	Reverse   bool
}

// Line is one physical screen row: an ordered sequence of cells plus
// the attribute bit-set and mutation seqno described in spec §3.
// Wrapped marks that the next physical row is this line's logical
// continuation.
type Line struct {
	Cells           []Cell
	Flags           LineFlags
	Wrapped         bool
	LastChangeSeqno int64
}

// Width returns the sum of cell display widths (not len(Cells), since
// wide cells occupy two terminal columns but are stored as one Cell).
func (l Line) Width() int {
	w := 0
	for _, c := range l.Cells {
		w += c.Width
	}
	return w
}

// Clone returns a deep copy safe to mutate independently of l.
func (l Line) Clone() Line {
	cells := make([]Cell, len(l.Cells))
	copy(cells, l.Cells)
	return Line{Cells: cells, Flags: l.Flags, Wrapped: l.Wrapped, LastChangeSeqno: l.LastChangeSeqno}
}

// LastGoodFrame is a snapshot of the visible viewport taken at resize
// boundaries, restored on rollback if the post-resize screen fails its
// validity check.
type LastGoodFrame struct {
	Cells          [][]Cell
	Rows           int
	Cols           int
	DPI            float64
	LayoutSignature uint64
	Seqno          int64
	EstimatedBytes int64
	LineageID      string
}

// CellSizeBytes is the sizeof(cell) term used by the LastGoodFrame byte
// budget (rows * cols * CellSizeBytes * 4, spec §3).
const CellSizeBytes = 32

// ByteBudget returns rows*cols*CellSizeBytes*4 for the given dimensions.
func ByteBudget(rows, cols int) int64 {
	return int64(rows) * int64(cols) * CellSizeBytes * 4
}
