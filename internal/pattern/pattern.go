// Package pattern defines the detection-engine contract consumed by
// internal/observe's persistence & detection stage. The rule DSL and
// production engine are external per spec.md's non-goals; this package
// ships the consumed interface plus an in-memory test double driven by
// YAML rule fixtures.
package pattern

import "github.com/ehrlich-b/ft/internal/model"

// Rule is one detection rule: a human id, the event type it emits, and
// a severity/confidence pair assigned when it matches.
type Rule struct {
	ID         string   `yaml:"id"`
	EventType  string   `yaml:"event_type"`
	Severity   string   `yaml:"severity"`
	Confidence float64  `yaml:"confidence"`
	Contains   []string `yaml:"contains"`
}

// Context is a pane's running detection state, cleared across capture
// gaps (spec §4.1 step 4d).
type Context struct {
	PaneID uint64
}

// Engine is the consumed pattern-detection contract: given a segment's
// content and the pane's detection context, return zero or more
// DetectionEvents.
type Engine interface {
	Detect(ctx Context, content []byte, segmentID int64, nowMS int64) ([]model.DetectionEvent, error)
	NewContext(paneID uint64) Context
}

// RuleSet is an ordered collection of rules, matched in order.
type RuleSet struct {
	Rules []Rule
}
