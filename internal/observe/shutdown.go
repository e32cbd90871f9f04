package observe

import "time"

// ShutdownSummary records what happened during a graceful shutdown
// (spec §4.1: "records elapsed time, final queue depths, totals, last
// per-pane seq, and any warnings").
type ShutdownSummary struct {
	Elapsed       time.Duration
	FinalDepths   map[string]int
	TotalSegments int64
	LastSeqByPane map[uint64]int64
	Warnings      []string
}

// BuildShutdownSummary assembles a ShutdownSummary from the runtime's
// final state at the moment shutdown completes (or timed out).
func BuildShutdownSummary(started time.Time, depths map[string]int, totalSegments int64, lastSeq map[uint64]int64, warnings []string) ShutdownSummary {
	return ShutdownSummary{
		Elapsed:       time.Since(started),
		FinalDepths:   depths,
		TotalSegments: totalSegments,
		LastSeqByPane: lastSeq,
		Warnings:      warnings,
	}
}

// shutdownDrainTimeout is the grace period tasks are given to drain
// their queues before being considered abandoned (spec §4.1/§5: "a
// 5-second timeout").
const shutdownDrainTimeout = 5 * time.Second
