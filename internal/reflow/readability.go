package reflow

// LineScorecard compares one logical line's chosen wrap plan against
// the greedy baseline, the unit the readability gate aggregates over
// (spec §4.2: "per-line scorecards (selected cost, greedy baseline
// cost, badness delta, mode used)").
type LineScorecard struct {
	LogicalIndex int
	SelectedCost uint64
	GreedyCost   uint64
	BadnessDelta uint64
	Mode         WrapMode
}

// ReadabilitySummary is the aggregate the gate checks against policy
// caps.
type ReadabilitySummary struct {
	ScoredLines          int
	DPLines              int
	FallbackLines        int
	MaxBadnessDelta      uint64
	TotalBadnessDelta    uint64
	FallbackRatioPercent float64
}

// ReadabilityPolicy holds the opt-in gate's caps. A zero-value policy
// has ReadabilityGateEnabled default to off — see Config.
type ReadabilityPolicy struct {
	MaxLineBadnessDelta     uint64
	MaxTotalBadnessDelta    uint64
	MaxFallbackRatioPercent float64
}

// ReadabilityStatus is the gate's verdict.
type ReadabilityStatus string

const (
	ReadabilityPass ReadabilityStatus = "pass"
	ReadabilityFail ReadabilityStatus = "fail"
)

// ReadabilityRecord is the structured JSON record emitted after every
// gated resize (spec §4.2: "Emit a structured JSON record tagged
// resize_wrap_readability").
type ReadabilityRecord struct {
	Tag     string             `json:"tag"`
	Status  ReadabilityStatus  `json:"status"`
	Reason  string             `json:"reason,omitempty"`
	Summary ReadabilitySummary `json:"summary"`
	Policy  ReadabilityPolicy  `json:"policy"`
}

// Score builds a LineScorecard for one logical line given its chosen
// plan and the greedy baseline plan evaluated under the same cost
// model.
func Score(idx int, chosen WrapPlan, tokens []Token, width int, cm CostModel) LineScorecard {
	selected := EvaluateBreakOffsets(tokens, chosen.BreakOffsets, width, cm)
	greedyOffsets := greedyBreakOffsets(tokens, width)
	baseline := EvaluateBreakOffsets(tokens, greedyOffsets, width, cm)

	var delta uint64
	if selected.TotalCost > baseline.TotalCost {
		delta = selected.TotalCost - baseline.TotalCost
	}
	return LineScorecard{
		LogicalIndex: idx,
		SelectedCost: selected.TotalCost,
		GreedyCost:   baseline.TotalCost,
		BadnessDelta: delta,
		Mode:         chosen.Mode,
	}
}

// Aggregate rolls a set of scorecards into a ReadabilitySummary.
func Aggregate(cards []LineScorecard) ReadabilitySummary {
	var s ReadabilitySummary
	s.ScoredLines = len(cards)
	for _, c := range cards {
		if c.Mode == ModeDP {
			s.DPLines++
		} else {
			s.FallbackLines++
		}
		if c.BadnessDelta > s.MaxBadnessDelta {
			s.MaxBadnessDelta = c.BadnessDelta
		}
		s.TotalBadnessDelta += c.BadnessDelta
	}
	if s.ScoredLines > 0 {
		s.FallbackRatioPercent = 100 * float64(s.FallbackLines) / float64(s.ScoredLines)
	}
	return s
}

// Evaluate compares an aggregate summary against policy caps, returning
// the structured record the gate emits. A zero-value policy (all caps
// zero) always passes — callers must check ReadabilityGateEnabled
// before invoking the gate at all.
func Evaluate(summary ReadabilitySummary, policy ReadabilityPolicy) ReadabilityRecord {
	rec := ReadabilityRecord{Tag: "resize_wrap_readability", Status: ReadabilityPass, Summary: summary, Policy: policy}

	switch {
	case policy.MaxLineBadnessDelta > 0 && summary.MaxBadnessDelta > policy.MaxLineBadnessDelta:
		rec.Status = ReadabilityFail
		rec.Reason = "max_line_badness_delta exceeded"
	case policy.MaxTotalBadnessDelta > 0 && summary.TotalBadnessDelta > policy.MaxTotalBadnessDelta:
		rec.Status = ReadabilityFail
		rec.Reason = "max_total_badness_delta exceeded"
	case policy.MaxFallbackRatioPercent > 0 && summary.FallbackRatioPercent > policy.MaxFallbackRatioPercent:
		rec.Status = ReadabilityFail
		rec.Reason = "max_fallback_ratio_percent exceeded"
	}
	return rec
}
