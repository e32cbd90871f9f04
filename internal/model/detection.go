package model

import (
	"fmt"
	"hash/fnv"
)

// DedupeBucketMS is the time-bucket width used to fold detections of the
// same rule/pane/event-type into a single surviving event, grounded on
// original_source's EVENT_DEDUPE_BUCKET_MS.
const DedupeBucketMS = 300_000

// Severity classifies a DetectionEvent.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// DetectionEvent is a durable pattern match against a captured segment.
// At most one event per DedupeKey survives to the store.
type DetectionEvent struct {
	PaneID       uint64         `json:"pane_id"`
	PaneUUID     string         `json:"pane_uuid"`
	RuleID       string         `json:"rule_id"`
	EventType    string         `json:"event_type"`
	Severity     Severity       `json:"severity"`
	Confidence   float64        `json:"confidence"`
	MatchedText  string         `json:"matched_text"`
	Extracted    map[string]any `json:"extracted,omitempty"`
	SegmentID    int64          `json:"segment_id"`
	DetectedAtMS int64          `json:"detected_at_ms"`
}

// DedupeKey computes hash(rule_id, pane_id|uuid, event_type) folded into
// the DedupeBucketMS-wide time bucket containing DetectedAtMS. Two
// detections differing only by DetectedAtMS within the same bucket
// produce the same key (spec §8 dedup-bucket law).
func (e DetectionEvent) DedupeKey() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%s|%s|%d", e.RuleID, e.PaneID, e.PaneUUID, e.EventType, e.DetectedAtMS/DedupeBucketMS)
	return fmt.Sprintf("%016x", h.Sum64())
}
