package pattern

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ehrlich-b/ft/internal/model"
)

// LoadRuleSetYAML parses a YAML rule-set fixture, grounded on the
// teacher's preference for gopkg.in/yaml.v3 over hand-rolled config
// parsing wherever a structured fixture format is needed.
func LoadRuleSetYAML(data []byte) (RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("parse rule set: %w", err)
	}
	return rs, nil
}

// FixtureEngine is an in-memory Engine test double: a rule matches when
// its content contains every one of its Contains substrings.
type FixtureEngine struct {
	rules []Rule
}

// NewFixtureEngine returns an Engine backed by rs.
func NewFixtureEngine(rs RuleSet) *FixtureEngine {
	return &FixtureEngine{rules: rs.Rules}
}

func (e *FixtureEngine) NewContext(paneID uint64) Context { return Context{PaneID: paneID} }

func (e *FixtureEngine) Detect(ctx Context, content []byte, segmentID int64, nowMS int64) ([]model.DetectionEvent, error) {
	var events []model.DetectionEvent
	for _, r := range e.rules {
		matched := true
		for _, sub := range r.Contains {
			if !bytes.Contains(content, []byte(sub)) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		events = append(events, model.DetectionEvent{
			PaneID:       ctx.PaneID,
			RuleID:       r.ID,
			EventType:    r.EventType,
			Severity:     model.Severity(r.Severity),
			Confidence:   r.Confidence,
			MatchedText:  string(content),
			SegmentID:    segmentID,
			DetectedAtMS: nowMS,
		})
	}
	return events, nil
}
