// Package mux defines the observation runtime's contract with the
// external terminal multiplexer: pane discovery, output tailing, and an
// optional native-event stream. ft never writes to an observed pane.
// Grounded on other_examples' pane_streamer.go (pipe-pane with polling
// fallback) and tty_v2_scheduler_test.go (foreground-immediate vs.
// background-coalesced capture semantics).
package mux

import (
	"context"

	"github.com/ehrlich-b/ft/internal/model"
)

// DiscoveredPane is one pane reported by a multiplexer discovery pass.
type DiscoveredPane struct {
	ID           uint64
	OriginDomain string
	Cols, Rows   int
}

// Client is the consumed multiplexer contract. Discover is polled by the
// observation runtime's discovery stage; OpenTailer/SupportsNativeEvents
// pick the capture path.
type Client interface {
	Discover(ctx context.Context) ([]DiscoveredPane, error)
	OpenTailer(ctx context.Context, paneID uint64) (Tailer, error)
	SupportsNativeEvents() bool
	OpenEventListener(ctx context.Context) (EventListener, error)
}

// Tailer is the polling capture path: one per observed pane, read
// adaptively by the capture stage between min/max intervals.
type Tailer interface {
	// Poll returns new output since the last call, or nil if nothing
	// changed. A returned gapReason is non-empty when the tailer detected
	// a discontinuity (e.g. the underlying pane was resized mid-read).
	Poll(ctx context.Context) (delta []byte, gapReason model.GapReason, err error)
	PaneID() uint64
	Close() error
}

// NativeEventKind discriminates the four native-event socket message
// variants (spec §4.1/§6.6).
type NativeEventKind string

const (
	NativeEventPaneOutput    NativeEventKind = "pane_output"
	NativeEventStateChange   NativeEventKind = "state_change"
	NativeEventPaneCreated   NativeEventKind = "pane_created"
	NativeEventPaneDestroyed NativeEventKind = "pane_destroyed"
	NativeEventUserVarChanged NativeEventKind = "user_var_changed"
)

// NativeEvent is one message received over the native-event socket.
type NativeEvent struct {
	Kind         NativeEventKind
	PaneID       uint64
	Output       []byte
	StateDetails map[string]any
	VarName      string
	VarValue     string
}

// EventListener is the native-event capture path: a connection-oriented
// local socket delivering length-prefixed JSON records of NativeEvent.
// Unknown messages are ignored; malformed messages terminate the
// connection (spec §6.6).
type EventListener interface {
	Events() <-chan NativeEvent
	Close() error
}
