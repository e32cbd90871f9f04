package recorder

import (
	"encoding/json"

	"github.com/ehrlich-b/ft/internal/model"
)

// LexicalSchemaVersion tags the index document schema (spec §6.2),
// grounded on tantivy_ingest.rs's LEXICAL_SCHEMA_VERSION constant.
const LexicalSchemaVersion = "ft.recorder.lexical.v1"

// IndexDocumentFields is the flat document schema indexed by the
// external search backend (spec §6.2).
type IndexDocumentFields struct {
	SchemaVersion        string `json:"schema_version"`
	LexicalSchemaVersion string `json:"lexical_schema_version"`
	EventID              string `json:"event_id"`
	PaneID               uint64 `json:"pane_id"`
	SessionID            string `json:"session_id,omitempty"`
	WorkflowID           string `json:"workflow_id,omitempty"`
	CorrelationID        string `json:"correlation_id,omitempty"`
	ParentEventID        string `json:"parent_event_id,omitempty"`
	TriggerEventID       string `json:"trigger_event_id,omitempty"`
	RootEventID          string `json:"root_event_id,omitempty"`
	Source               string `json:"source"`
	EventType            string `json:"event_type"`
	IngressKind          string `json:"ingress_kind,omitempty"`
	SegmentKind          string `json:"segment_kind,omitempty"`
	ControlMarkerType    string `json:"control_marker_type,omitempty"`
	LifecyclePhase       string `json:"lifecycle_phase,omitempty"`
	IsGap                bool   `json:"is_gap"`
	Redaction            string `json:"redaction,omitempty"`
	OccurredAtMS         int64  `json:"occurred_at_ms"`
	RecordedAtMS         int64  `json:"recorded_at_ms"`
	Sequence             int64  `json:"sequence"`
	LogOffset            int64  `json:"log_offset"`
	Text                 string `json:"text"`
	TextSymbols          string `json:"text_symbols"`
	DetailsJSON          string `json:"details_json,omitempty"`
}

// formatSource returns the event's Source field, falling back to the
// event kind name when empty — mirrors the original's format_source.
func formatSource(ev model.RecorderEvent) string {
	if ev.Source != "" {
		return ev.Source
	}
	return string(ev.Kind)
}

func formatIngressKind(p *model.IngressTextPayload) string {
	if p == nil {
		return ""
	}
	return string(p.IngressKind)
}

func formatSegmentKind(p *model.EgressOutputPayload) string {
	if p == nil {
		return ""
	}
	return string(p.SegmentKind)
}

func formatControlMarker(p *model.ControlMarkerPayload) string {
	if p == nil {
		return ""
	}
	return string(p.ControlMarkerType)
}

func formatLifecyclePhase(p *model.LifecycleMarkerPayload) string {
	if p == nil {
		return ""
	}
	return string(p.LifecyclePhase)
}

// formatRedaction returns the payload's redaction mode, the empty
// string when the variant carries none.
func formatRedaction(ev model.RecorderEvent) string {
	switch {
	case ev.IngressText != nil:
		return string(ev.IngressText.Redaction)
	case ev.EgressOutput != nil:
		return string(ev.EgressOutput.Redaction)
	default:
		return ""
	}
}

// redactedText returns the variant's text field already reduced per its
// own Redaction mode: "none" passes text through, "partial" returns
// "[REDACTED]", "full" returns "".
func redactedText(text string, redaction model.Redaction) string {
	switch redaction {
	case model.RedactionPartial:
		return "[REDACTED]"
	case model.RedactionFull:
		return ""
	default:
		return text
	}
}

func isGap(ev model.RecorderEvent) bool {
	return ev.EgressOutput != nil && ev.EgressOutput.IsGap
}

func detailsJSON(v map[string]any) string {
	if len(v) == 0 {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// MapEventToDocument converts a log record into its flat index document,
// supplementing §6.2's schema with the original's per-variant string
// formatting (format_source/format_ingress_kind/etc.) that the spec's
// distillation dropped but the round-trip/tokenization properties in §8
// require.
func MapEventToDocument(rec Record) IndexDocumentFields {
	ev := rec.Event

	var text, rawText string
	var redaction model.Redaction
	var details string

	switch {
	case ev.IngressText != nil:
		rawText = ev.IngressText.Text
		redaction = ev.IngressText.Redaction
	case ev.EgressOutput != nil:
		rawText = ev.EgressOutput.Text
		redaction = ev.EgressOutput.Redaction
	case ev.ControlMarker != nil:
		details = detailsJSON(ev.ControlMarker.Details)
	case ev.LifecycleMarker != nil:
		details = detailsJSON(ev.LifecycleMarker.Details)
	}
	text = redactedText(rawText, redaction)

	return IndexDocumentFields{
		SchemaVersion:        ev.SchemaVersion,
		LexicalSchemaVersion: LexicalSchemaVersion,
		EventID:              ev.EventID,
		PaneID:               ev.PaneID,
		SessionID:            ev.SessionID,
		WorkflowID:           ev.WorkflowID,
		CorrelationID:        ev.CorrelationID,
		ParentEventID:        ev.Causality.ParentEventID,
		TriggerEventID:       ev.Causality.TriggerEventID,
		RootEventID:          ev.Causality.RootEventID,
		Source:               formatSource(ev),
		EventType:            string(ev.Kind),
		IngressKind:          formatIngressKind(ev.IngressText),
		SegmentKind:          formatSegmentKind(ev.EgressOutput),
		ControlMarkerType:    formatControlMarker(ev.ControlMarker),
		LifecyclePhase:       formatLifecyclePhase(ev.LifecycleMarker),
		IsGap:                isGap(ev),
		Redaction:            formatRedaction(ev),
		OccurredAtMS:         ev.OccurredAtMS,
		RecordedAtMS:         ev.RecordedAtMS,
		Sequence:             ev.Sequence,
		LogOffset:            rec.Offset.ByteOffset,
		Text:                 text,
		TextSymbols:          text,
		DetailsJSON:          details,
	}
}
