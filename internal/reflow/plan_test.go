package reflow

import "testing"

func TestClassifyLinesViewportAndNear(t *testing.T) {
	classes := ClassifyLines(20, 5, 10)
	for i, c := range classes {
		switch {
		case i >= 5 && i < 10:
			if c != ClassViewport {
				t.Fatalf("line %d: expected Viewport, got %v", i, c)
			}
		case i >= 0 && i < 5:
			if c != ClassNearViewport {
				t.Fatalf("line %d: expected NearViewport, got %v", i, c)
			}
		case i >= 10 && i < 15:
			if c != ClassNearViewport {
				t.Fatalf("line %d: expected NearViewport, got %v", i, c)
			}
		default:
			if c != ClassColdScrollback {
				t.Fatalf("line %d: expected ColdScrollback, got %v", i, c)
			}
		}
	}
}

func TestBuildPlanCoversEveryLineExactlyOnce(t *testing.T) {
	classes := ClassifyLines(500, 100, 150)
	batches := BuildPlan(classes)
	if !CoversAll(batches, 500) {
		t.Fatalf("plan does not cover every logical line exactly once")
	}
}

func TestBuildPlanOrdersViewportFirst(t *testing.T) {
	classes := ClassifyLines(100, 50, 60)
	batches := BuildPlan(classes)
	if batches[0].Class != ClassViewport {
		t.Fatalf("expected the first batch to be Viewport, got %v", batches[0].Class)
	}
}

func TestBuildPlanCapsBatchSize(t *testing.T) {
	classes := ClassifyLines(1000, 0, 0) // entirely cold scrollback
	batches := BuildPlan(classes)
	for _, b := range batches {
		if b.Len() > MaxBatchSize {
			t.Fatalf("batch %+v exceeds MaxBatchSize", b)
		}
	}
}
