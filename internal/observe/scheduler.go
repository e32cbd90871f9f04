package observe

import (
	"sort"
	"time"

	"golang.org/x/time/rate"
)

// TailerState is the adaptive scheduler's view of one pane's tailer:
// its next poll deadline, current backoff interval, and priority (base
// rule result combined with any operator override), per spec §4.1.
type TailerState struct {
	PaneID       uint64
	Priority     int
	NextPollAt   time.Time
	Interval     time.Duration
	MinInterval  time.Duration
	MaxInterval  time.Duration
	BackoffFactor float64

	captureLimiter *rate.Limiter
	byteLimiter    *rate.Limiter
}

// NewTailerState returns a tailer ready to poll immediately at
// minInterval, rate-limited to capturesPerSec captures and
// bytesPerSec bytes.
func NewTailerState(paneID uint64, priority int, minInterval, maxInterval time.Duration, backoffFactor float64, capturesPerSec, bytesPerSec float64) *TailerState {
	return &TailerState{
		PaneID:        paneID,
		Priority:      priority,
		NextPollAt:    time.Now(),
		Interval:      minInterval,
		MinInterval:   minInterval,
		MaxInterval:   maxInterval,
		BackoffFactor: backoffFactor,
		captureLimiter: rate.NewLimiter(rate.Limit(capturesPerSec), int(capturesPerSec)+1),
		byteLimiter:    rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec)+1),
	}
}

// OnDelta resets the tailer's interval to its minimum after a
// successful capture with new content.
func (t *TailerState) OnDelta(now time.Time) {
	t.Interval = t.MinInterval
	t.NextPollAt = now.Add(t.Interval)
}

// OnNoDelta backs the tailer's interval off by BackoffFactor, capped at
// MaxInterval, per spec §4.1 ("exponential backoff (1.5x) when no
// delta").
func (t *TailerState) OnNoDelta(now time.Time) {
	next := time.Duration(float64(t.Interval) * t.BackoffFactor)
	if next > t.MaxInterval {
		next = t.MaxInterval
	}
	if next < t.MinInterval {
		next = t.MinInterval
	}
	t.Interval = next
	t.NextPollAt = now.Add(t.Interval)
}

// HasBudget reports whether the tailer may capture n bytes right now
// without blocking (per-pane rate/byte budget, spec §4.1).
func (t *TailerState) HasBudget(n int) bool {
	return t.captureLimiter.Allow() && t.byteLimiter.AllowN(time.Now(), n)
}

// Scheduler selects the set of tailers ready to run on a given tick,
// bounded by a global concurrency cap and deterministic ordering (spec
// §4.1: "Ordering tie-break: higher priority first, then earliest
// deadline, then smallest pane id for determinism").
type Scheduler struct {
	MaxConcurrent int
}

// Select returns the tailers that are ready (past their deadline),
// ordered and truncated to MaxConcurrent.
func (s *Scheduler) Select(tailers []*TailerState, now time.Time) []*TailerState {
	var ready []*TailerState
	for _, t := range tailers {
		if !now.Before(t.NextPollAt) {
			ready = append(ready, t)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		a, b := ready[i], ready[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.NextPollAt.Equal(b.NextPollAt) {
			return a.NextPollAt.Before(b.NextPollAt)
		}
		return a.PaneID < b.PaneID
	})
	if s.MaxConcurrent > 0 && len(ready) > s.MaxConcurrent {
		ready = ready[:s.MaxConcurrent]
	}
	return ready
}
