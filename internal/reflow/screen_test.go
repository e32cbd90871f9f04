package reflow

import (
	"testing"

	"github.com/ehrlich-b/ft/internal/model"
)

func cellRun(s string) []model.Cell {
	cells := make([]model.Cell, len(s))
	for i, r := range s {
		cells[i] = model.Cell{Grapheme: string(r), Width: 1}
	}
	return cells
}

func TestLogicalLinesJoinsWrappedRows(t *testing.T) {
	lines := []model.Line{
		{Cells: cellRun("hello "), Wrapped: true},
		{Cells: cellRun("world")},
		{Cells: cellRun("next")},
	}
	logical, starts := LogicalLines(lines)
	if len(logical) != 2 {
		t.Fatalf("expected 2 logical lines, got %d", len(logical))
	}
	if len(logical[0].Cells) != len("hello world") {
		t.Fatalf("expected joined logical line of length %d, got %d", len("hello world"), len(logical[0].Cells))
	}
	if starts[0] != 0 || starts[1] != 2 {
		t.Fatalf("unexpected logical line starts: %v", starts)
	}
}

func TestStableRowRoundTrip(t *testing.T) {
	s := &Screen{Lines: make([]model.Line, 10)}
	s.AdvanceStableRowOffset(5)
	stable := s.StableRow(3)
	row, ok := s.PhysRow(stable)
	if !ok || row != 3 {
		t.Fatalf("stable row round trip failed: row=%d ok=%v", row, ok)
	}
}

func TestPhysRowOutOfWindowReportsNotOK(t *testing.T) {
	s := &Screen{Lines: make([]model.Line, 5)}
	if _, ok := s.PhysRow(100); ok {
		t.Fatalf("expected a stable row outside the window to report not ok")
	}
}

func TestLayoutSignatureChangesOnContentMutation(t *testing.T) {
	a := []model.Line{{Cells: cellRun("abc")}}
	b := []model.Line{{Cells: cellRun("abcd")}}
	if LayoutSignature(a) == LayoutSignature(b) {
		t.Fatalf("expected different layout signatures for different content")
	}
	if LayoutSignature(a) != LayoutSignature(a) {
		t.Fatalf("expected a stable layout signature for identical content")
	}
}

func TestCursorLogicalPositionAcrossWrappedRows(t *testing.T) {
	lines := []model.Line{
		{Cells: cellRun("0123456789"), Wrapped: true},
		{Cells: cellRun("abcde")},
	}
	_, starts := LogicalLines(lines)
	idx, col := CursorLogicalPosition(lines, starts, 1, 2)
	if idx != 0 || col != 12 {
		t.Fatalf("expected logical (0, 12), got (%d, %d)", idx, col)
	}
}
