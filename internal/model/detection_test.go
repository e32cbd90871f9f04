package model

import (
	"testing"
	"time"
)

func TestDedupeKeyBucketing(t *testing.T) {
	base := DetectionEvent{
		RuleID:    "rule.oom",
		PaneID:    42,
		EventType: "oom_killed",
	}
	a := base
	a.DetectedAtMS = 1_700_000_000_000
	b := base
	b.DetectedAtMS = a.DetectedAtMS + DedupeBucketMS - 1

	if a.DedupeKey() != b.DedupeKey() {
		t.Fatalf("events in the same %dms bucket must share a dedupe key: %s != %s", DedupeBucketMS, a.DedupeKey(), b.DedupeKey())
	}

	c := base
	c.DetectedAtMS = a.DetectedAtMS + DedupeBucketMS
	if a.DedupeKey() == c.DedupeKey() {
		t.Fatalf("events in different buckets must not share a dedupe key")
	}
}

func TestDedupeKeyDistinguishesRuleAndType(t *testing.T) {
	a := DetectionEvent{RuleID: "rule.a", PaneID: 1, EventType: "x", DetectedAtMS: 0}
	b := DetectionEvent{RuleID: "rule.b", PaneID: 1, EventType: "x", DetectedAtMS: 0}
	if a.DedupeKey() == b.DedupeKey() {
		t.Fatalf("different rule ids must not collide")
	}
}

func TestPanePriorityExpiry(t *testing.T) {
	var p *PanePriority
	if p.Expired(time.Now()) {
		t.Fatalf("nil priority must never report expired")
	}

	past := time.Now().Add(-time.Minute)
	p = &PanePriority{Value: 5, ExpiresAt: &past}
	if !p.Expired(time.Now()) {
		t.Fatalf("priority with a past expiry must report expired")
	}
}
