package pattern

import "testing"

const sampleYAML = `
rules:
  - id: rule.oom
    event_type: oom_killed
    severity: critical
    confidence: 0.95
    contains: ["Killed process", "out of memory"]
`

func TestLoadRuleSetYAMLAndDetect(t *testing.T) {
	rs, err := LoadRuleSetYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("LoadRuleSetYAML: %v", err)
	}
	if len(rs.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rs.Rules))
	}

	eng := NewFixtureEngine(rs)
	ctx := eng.NewContext(42)

	events, err := eng.Detect(ctx, []byte("Killed process 123 (out of memory)"), 7, 1000)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(events) != 1 || events[0].RuleID != "rule.oom" {
		t.Fatalf("expected one oom detection, got %+v", events)
	}

	none, err := eng.Detect(ctx, []byte("all good here"), 8, 1000)
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no detections for non-matching content, got %+v, %v", none, err)
	}
}
