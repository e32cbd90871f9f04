package model

// RecorderSchemaVersion is the wire schema tag for append-log records
// (spec §6.1, "ft.recorder.event.v1").
const RecorderSchemaVersion = "ft.recorder.event.v1"

// RecorderEventKind discriminates the payload variant of a RecorderEvent.
type RecorderEventKind string

const (
	KindIngressText     RecorderEventKind = "ingress_text"
	KindEgressOutput    RecorderEventKind = "egress_output"
	KindControlMarker   RecorderEventKind = "control_marker"
	KindLifecycleMarker RecorderEventKind = "lifecycle_marker"
)

// Redaction marks how much of a payload's text has been scrubbed.
type Redaction string

const (
	RedactionNone    Redaction = "none"
	RedactionPartial Redaction = "partial"
	RedactionFull    Redaction = "full"
)

// IngressKind classifies the origin of ingress text.
type IngressKind string

const (
	IngressSendText     IngressKind = "send_text"
	IngressPaste        IngressKind = "paste"
	IngressWorkflowAction IngressKind = "workflow_action"
)

// SegmentKind classifies egress output payloads.
type SegmentKind string

const (
	SegmentDelta    SegmentKind = "delta"
	SegmentGap      SegmentKind = "gap"
	SegmentSnapshot SegmentKind = "snapshot"
)

// ControlMarkerType enumerates control-marker payload subtypes.
type ControlMarkerType string

const (
	ControlPromptBoundary    ControlMarkerType = "prompt_boundary"
	ControlResize            ControlMarkerType = "resize"
	ControlPolicyDecision    ControlMarkerType = "policy_decision"
	ControlApprovalCheckpoint ControlMarkerType = "approval_checkpoint"
)

// LifecyclePhase enumerates lifecycle-marker payload subtypes.
type LifecyclePhase string

const (
	LifecycleCaptureStarted LifecyclePhase = "capture_started"
	LifecycleCaptureStopped LifecyclePhase = "capture_stopped"
	LifecyclePaneOpened     LifecyclePhase = "pane_opened"
	LifecyclePaneClosed     LifecyclePhase = "pane_closed"
	LifecycleReplayStarted  LifecyclePhase = "replay_started"
	LifecycleReplayFinished LifecyclePhase = "replay_finished"
)

// Causality links an event to the chain of events that produced it.
type Causality struct {
	ParentEventID  string `json:"parent_event_id,omitempty"`
	TriggerEventID string `json:"trigger_event_id,omitempty"`
	RootEventID    string `json:"root_event_id,omitempty"`
}

// RecorderEvent is the common header plus one payload variant of an
// append-log record (spec §6.1). Exactly one of the payload pointer
// fields is non-nil, matching Kind.
type RecorderEvent struct {
	SchemaVersion string            `json:"schema_version"`
	EventID       string            `json:"event_id"`
	PaneID        uint64            `json:"pane_id"`
	SessionID     string            `json:"session_id,omitempty"`
	WorkflowID    string            `json:"workflow_id,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Source        string            `json:"source"`
	OccurredAtMS  int64             `json:"occurred_at_ms"`
	RecordedAtMS  int64             `json:"recorded_at_ms"`
	Sequence      int64             `json:"sequence"`
	Causality     Causality         `json:"causality"`
	Kind          RecorderEventKind `json:"kind"`

	IngressText     *IngressTextPayload     `json:"ingress_text,omitempty"`
	EgressOutput    *EgressOutputPayload    `json:"egress_output,omitempty"`
	ControlMarker   *ControlMarkerPayload   `json:"control_marker,omitempty"`
	LifecycleMarker *LifecycleMarkerPayload `json:"lifecycle_marker,omitempty"`
}

type IngressTextPayload struct {
	Text        string      `json:"text"`
	Encoding    string      `json:"encoding"`
	Redaction   Redaction   `json:"redaction"`
	IngressKind IngressKind `json:"ingress_kind"`
}

type EgressOutputPayload struct {
	Text        string      `json:"text"`
	Encoding    string      `json:"encoding"`
	Redaction   Redaction   `json:"redaction"`
	SegmentKind SegmentKind `json:"segment_kind"`
	IsGap       bool        `json:"is_gap"`
}

type ControlMarkerPayload struct {
	ControlMarkerType ControlMarkerType `json:"control_marker_type"`
	Details           map[string]any    `json:"details,omitempty"`
}

type LifecycleMarkerPayload struct {
	LifecyclePhase LifecyclePhase `json:"lifecycle_phase"`
	Reason         string         `json:"reason,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
}

// RecorderOffset locates one record within the append log. Ordinal is
// strictly monotonic across the whole log; ByteOffset points at the
// start of the record's length prefix.
type RecorderOffset struct {
	SegmentID  int64 `json:"segment_id"`
	ByteOffset int64 `json:"byte_offset"`
	Ordinal    int64 `json:"ordinal"`
}

// RecorderCheckpoint is the durable resume point for one indexer consumer.
type RecorderCheckpoint struct {
	ConsumerID    string `json:"consumer_id"`
	UptoOffset    int64  `json:"upto_offset"`
	SchemaVersion string `json:"schema_version"`
	CommittedAtMS int64  `json:"committed_at_ms"`
}
