package observe

import (
	"testing"
	"time"
)

func TestSchedulerOrdersByPriorityThenDeadlineThenPaneID(t *testing.T) {
	now := time.Now()
	a := NewTailerState(3, 1, 10*time.Millisecond, 100*time.Millisecond, 1.5, 100, 1<<20)
	a.NextPollAt = now.Add(-time.Second)
	b := NewTailerState(1, 5, 10*time.Millisecond, 100*time.Millisecond, 1.5, 100, 1<<20)
	b.NextPollAt = now.Add(-time.Second)
	c := NewTailerState(2, 1, 10*time.Millisecond, 100*time.Millisecond, 1.5, 100, 1<<20)
	c.NextPollAt = now.Add(-time.Second)

	s := Scheduler{}
	ready := s.Select([]*TailerState{a, b, c}, now)
	if len(ready) != 3 {
		t.Fatalf("expected all 3 ready, got %d", len(ready))
	}
	if ready[0].PaneID != 1 {
		t.Fatalf("expected highest-priority pane 1 first, got %d", ready[0].PaneID)
	}
	// a and c share priority 1; smallest pane id breaks the tie.
	if ready[1].PaneID != 2 || ready[2].PaneID != 3 {
		t.Fatalf("expected pane id tie-break (2, then 3), got %d, %d", ready[1].PaneID, ready[2].PaneID)
	}
}

func TestSchedulerRespectsConcurrencyCap(t *testing.T) {
	now := time.Now()
	var tailers []*TailerState
	for i := uint64(0); i < 10; i++ {
		ts := NewTailerState(i, 1, 10*time.Millisecond, 100*time.Millisecond, 1.5, 100, 1<<20)
		ts.NextPollAt = now.Add(-time.Second)
		tailers = append(tailers, ts)
	}
	s := Scheduler{MaxConcurrent: 3}
	ready := s.Select(tailers, now)
	if len(ready) != 3 {
		t.Fatalf("expected exactly 3 ready under the concurrency cap, got %d", len(ready))
	}
}

func TestSchedulerExcludesNotYetDue(t *testing.T) {
	now := time.Now()
	due := NewTailerState(1, 0, 10*time.Millisecond, 100*time.Millisecond, 1.5, 100, 1<<20)
	due.NextPollAt = now.Add(-time.Millisecond)
	notDue := NewTailerState(2, 0, 10*time.Millisecond, 100*time.Millisecond, 1.5, 100, 1<<20)
	notDue.NextPollAt = now.Add(time.Hour)

	s := Scheduler{}
	ready := s.Select([]*TailerState{due, notDue}, now)
	if len(ready) != 1 || ready[0].PaneID != 1 {
		t.Fatalf("expected only the due tailer to be selected, got %+v", ready)
	}
}

func TestTailerStateBackoffCapsAtMaxInterval(t *testing.T) {
	ts := NewTailerState(1, 0, 10*time.Millisecond, 40*time.Millisecond, 2.0, 100, 1<<20)
	now := time.Now()
	for i := 0; i < 10; i++ {
		ts.OnNoDelta(now)
	}
	if ts.Interval > 40*time.Millisecond {
		t.Fatalf("backoff exceeded MaxInterval: %v", ts.Interval)
	}
}

func TestTailerStateOnDeltaResetsInterval(t *testing.T) {
	ts := NewTailerState(1, 0, 10*time.Millisecond, 200*time.Millisecond, 1.5, 100, 1<<20)
	now := time.Now()
	ts.OnNoDelta(now)
	ts.OnNoDelta(now)
	if ts.Interval == ts.MinInterval {
		t.Fatalf("expected interval to have backed off")
	}
	ts.OnDelta(now)
	if ts.Interval != ts.MinInterval {
		t.Fatalf("expected interval reset to MinInterval after a delta, got %v", ts.Interval)
	}
}
