// Package reflow re-wraps a terminal screen's logical lines against a
// new (rows, cols, dpi), preserving logical line identity, cursor
// position, and — under an opt-in readability gate — bounded wrap
// quality. kpwrap.go is grounded line-for-line on
// frankenterm/surface/src/line/line.rs's MonospaceKpCostModel,
// bounded_monospace_wrap_plan, and compare_monospace_break_candidates.
package reflow

import "math"

// KPBadnessInf stands in for the original's KP_BADNESS_INF (u64::MAX/4
// in Rust); Go's uint64 max/4 keeps headroom for summation without
// overflow.
const KPBadnessInf uint64 = math.MaxUint64 / 4

const (
	// DefaultLookaheadLimit bounds how many tokens ahead the DP
	// considers per breakpoint (original: KP_DEFAULT_LOOKAHEAD_LIMIT).
	DefaultLookaheadLimit = 64
	// DefaultMaxDPStates bounds total DP work before falling back to
	// greedy wrapping (original: KP_DEFAULT_MAX_DP_STATES).
	DefaultMaxDPStates = 8192
	// DefaultBadnessScale and DefaultForcedBreakPenalty are the cost
	// model's scale constants (original: MonospaceKpCostModel defaults).
	DefaultBadnessScale        = 10000
	DefaultForcedBreakPenalty  = 5000
)

// Token is one breakable unit on a logical line: a run of grapheme
// clusters with a known display width. The wrap planner only ever
// breaks between tokens, never inside one.
type Token struct {
	Width int
}

// CostModel is the bounded Knuth-Plass cost model for monospace wrapping.
type CostModel struct {
	BadnessScale        uint64
	ForcedBreakPenalty  uint64
	LookaheadLimit      int
	MaxDPStates         int
}

// DefaultCostModel returns the spec's documented constants.
func DefaultCostModel() CostModel {
	return CostModel{
		BadnessScale:       DefaultBadnessScale,
		ForcedBreakPenalty: DefaultForcedBreakPenalty,
		LookaheadLimit:     DefaultLookaheadLimit,
		MaxDPStates:        DefaultMaxDPStates,
	}
}

// LineBadness computes line_badness(slack, width, is_last): 0 if this is
// the screen's last row, KPBadnessInf if slack is negative (the line
// overflows), else slack^3 * badness_scale / width^3.
func (c CostModel) LineBadness(slack, width int, isLast bool) uint64 {
	if isLast {
		return 0
	}
	if slack < 0 {
		return KPBadnessInf
	}
	if width <= 0 {
		return KPBadnessInf
	}
	s := uint64(slack)
	w := uint64(width)
	// slack^3 * scale / width^3, each multiplication saturating to
	// KPBadnessInf on overflow rather than wrapping (matches the
	// original's saturating arithmetic).
	num, ok := satMul3(s, s, s)
	if !ok {
		return KPBadnessInf
	}
	num, ok = satMul(num, c.BadnessScale)
	if !ok {
		return KPBadnessInf
	}
	den, ok := satMul3(w, w, w)
	if !ok || den == 0 {
		return KPBadnessInf
	}
	return num / den
}

func satMul(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	if r/a != b {
		return 0, false
	}
	return r, true
}

func satMul3(a, b, c uint64) (uint64, bool) {
	ab, ok := satMul(a, b)
	if !ok {
		return 0, false
	}
	return satMul(ab, c)
}

// estimatedDPStates returns tokens * min(tokens, lookaheadLimit), the
// budget-gate estimate from the original's should_fallback.
func estimatedDPStates(tokens, lookaheadLimit int) int {
	la := lookaheadLimit
	if tokens < la {
		la = tokens
	}
	return tokens * la
}

// ShouldFallback reports whether the budget gate forces greedy wrapping
// before the DP even begins: tokens * min(tokens, lookahead_limit) >
// max_dp_states, or zero width.
func (c CostModel) ShouldFallback(tokens, width int) bool {
	if width <= 0 {
		return true
	}
	return estimatedDPStates(tokens, c.LookaheadLimit) > c.MaxDPStates
}

// BreakCandidate is one fully-evaluated wrap plan, ranked lexicographically
// by (TotalCost, ForcedBreaks, MaxLineBadness, LineCount, BreakOffsets) —
// grounded on compare_monospace_break_candidates.
type BreakCandidate struct {
	TotalCost      uint64
	ForcedBreaks   int
	MaxLineBadness uint64
	LineCount      int
	BreakOffsets   []int
}

// Compare implements the total order used to pick the best candidate:
// lower is better, lexicographically over
// (TotalCost, ForcedBreaks, MaxLineBadness, LineCount, BreakOffsets).
func Compare(a, b BreakCandidate) int {
	if a.TotalCost != b.TotalCost {
		if a.TotalCost < b.TotalCost {
			return -1
		}
		return 1
	}
	if a.ForcedBreaks != b.ForcedBreaks {
		if a.ForcedBreaks < b.ForcedBreaks {
			return -1
		}
		return 1
	}
	if a.MaxLineBadness != b.MaxLineBadness {
		if a.MaxLineBadness < b.MaxLineBadness {
			return -1
		}
		return 1
	}
	if a.LineCount != b.LineCount {
		if a.LineCount < b.LineCount {
			return -1
		}
		return 1
	}
	n := len(a.BreakOffsets)
	if len(b.BreakOffsets) < n {
		n = len(b.BreakOffsets)
	}
	for i := 0; i < n; i++ {
		if a.BreakOffsets[i] != b.BreakOffsets[i] {
			if a.BreakOffsets[i] < b.BreakOffsets[i] {
				return -1
			}
			return 1
		}
	}
	return len(a.BreakOffsets) - len(b.BreakOffsets)
}

// WrapMode reports whether a plan came from the DP or the greedy fallback.
type WrapMode int

const (
	ModeDP WrapMode = iota
	ModeFallback
)

// WrapPlan is the outcome of bounded_monospace_wrap_plan: the chosen
// break offsets (token indices where a new row starts) plus bookkeeping
// for the readability gate.
type WrapPlan struct {
	Mode             WrapMode
	BreakOffsets     []int
	EstimatedStates  int
	EvaluatedStates  int
}

// BoundedMonospaceWrapPlan computes the deterministic, lowest-cost set
// of break offsets for tokens at the given width, falling back to greedy
// first-fit wrapping when the budget gate trips (statically or at
// runtime).
func BoundedMonospaceWrapPlan(tokens []Token, width int, cm CostModel) WrapPlan {
	estimated := estimatedDPStates(len(tokens), cm.LookaheadLimit)
	if cm.ShouldFallback(len(tokens), width) {
		return WrapPlan{Mode: ModeFallback, BreakOffsets: greedyBreakOffsets(tokens, width), EstimatedStates: estimated}
	}

	n := len(tokens)
	if n == 0 {
		return WrapPlan{Mode: ModeDP, BreakOffsets: nil, EstimatedStates: estimated}
	}

	// best[i] = best candidate covering tokens[0:i] (i.e. i tokens placed).
	best := make([]*BreakCandidate, n+1)
	best[0] = &BreakCandidate{}

	evaluated := 0
	for i := 0; i < n; i++ {
		if best[i] == nil {
			continue
		}
		lineWidth := 0
		forcedThisLine := 0
		lookaheadEnd := i + cm.LookaheadLimit
		if lookaheadEnd > n {
			lookaheadEnd = n
		}
		for j := i; j < lookaheadEnd; j++ {
			evaluated++
			if evaluated > cm.MaxDPStates {
				return WrapPlan{Mode: ModeFallback, BreakOffsets: greedyBreakOffsets(tokens, width), EstimatedStates: estimated, EvaluatedStates: evaluated}
			}

			tokWidth := tokens[j].Width
			if tokWidth > width {
				// An overflow token can only start a candidate row when it's
				// the first token in this lookahead window; if one or more
				// normal-width tokens already sit ahead of it on this line,
				// there is no valid row that includes it, so we stop the
				// window here with no candidate (mirrors the cumulative
				// overflow break below).
				if j == i {
					overflowCols := tokWidth - width
					if overflowCols < 1 {
						overflowCols = 1
					}
					cost := cm.ForcedBreakPenalty * uint64(overflowCols)
					candidate := BreakCandidate{
						TotalCost:      best[i].TotalCost + cost,
						ForcedBreaks:   best[i].ForcedBreaks + 1,
						MaxLineBadness: maxU64(best[i].MaxLineBadness, cost),
						LineCount:      best[i].LineCount + 1,
						BreakOffsets:   appendOffset(best[i].BreakOffsets, j+1),
					}
					considerCandidate(best, j+1, candidate)
				}
				break // overflow token can't share a row with anything else
			}

			lineWidth += tokWidth
			if lineWidth > width {
				break
			}
			slack := width - lineWidth
			isLast := j+1 == n
			badness := cm.LineBadness(slack, width, isLast)
			candidate := BreakCandidate{
				TotalCost:      best[i].TotalCost + badness,
				ForcedBreaks:   best[i].ForcedBreaks + forcedThisLine,
				MaxLineBadness: maxU64(best[i].MaxLineBadness, badness),
				LineCount:      best[i].LineCount + 1,
				BreakOffsets:   appendOffset(best[i].BreakOffsets, j+1),
			}
			considerCandidate(best, j+1, candidate)
		}
	}

	final := best[n]
	if final == nil {
		return WrapPlan{Mode: ModeFallback, BreakOffsets: greedyBreakOffsets(tokens, width), EstimatedStates: estimated, EvaluatedStates: evaluated}
	}
	return WrapPlan{Mode: ModeDP, BreakOffsets: final.BreakOffsets, EstimatedStates: estimated, EvaluatedStates: evaluated}
}

func considerCandidate(best []*BreakCandidate, idx int, candidate BreakCandidate) {
	if best[idx] == nil || Compare(candidate, *best[idx]) < 0 {
		c := candidate
		best[idx] = &c
	}
}

func appendOffset(existing []int, next int) []int {
	out := make([]int, len(existing), len(existing)+1)
	copy(out, existing)
	return append(out, next)
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// greedyBreakOffsetsFromTokens implements first-fit greedy wrapping,
// used both as the fallback planner and as the readability gate's
// baseline for scoring. Exported as greedyBreakOffsets for package use.
func greedyBreakOffsets(tokens []Token, width int) []int {
	if width <= 0 {
		if len(tokens) == 0 {
			return nil
		}
		return []int{len(tokens)}
	}
	var offsets []int
	lineWidth := 0
	for i, t := range tokens {
		if t.Width > width {
			if lineWidth > 0 {
				offsets = append(offsets, i)
			}
			offsets = append(offsets, i+1)
			lineWidth = 0
			continue
		}
		if lineWidth+t.Width > width {
			offsets = append(offsets, i)
			lineWidth = t.Width
		} else {
			lineWidth += t.Width
		}
	}
	if len(tokens) > 0 && (len(offsets) == 0 || offsets[len(offsets)-1] != len(tokens)) {
		offsets = append(offsets, len(tokens))
	}
	return offsets
}

// EvaluateBreakOffsets scores a pre-existing set of break offsets (e.g.
// produced by greedy wrapping) under cm's cost model, used by the
// readability gate to compute a comparison baseline.
func EvaluateBreakOffsets(tokens []Token, offsets []int, width int, cm CostModel) BreakCandidate {
	var cand BreakCandidate
	start := 0
	for idx, end := range offsets {
		lineWidth := 0
		forced := false
		for _, t := range tokens[start:end] {
			lineWidth += t.Width
			if t.Width > width {
				forced = true
			}
		}
		isLast := idx == len(offsets)-1
		slack := width - lineWidth
		var badness uint64
		if forced {
			overflow := lineWidth - width
			if overflow < 1 {
				overflow = 1
			}
			badness = cm.ForcedBreakPenalty * uint64(overflow)
			cand.ForcedBreaks++
		} else {
			badness = cm.LineBadness(slack, width, isLast)
		}
		cand.TotalCost += badness
		if badness > cand.MaxLineBadness {
			cand.MaxLineBadness = badness
		}
		cand.LineCount++
		start = end
	}
	cand.BreakOffsets = offsets
	return cand
}
