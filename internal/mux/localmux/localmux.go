// Package localmux is a same-host mux.Client test double backed by a
// real PTY (via github.com/creack/pty), used by internal/observe's
// integration tests to exercise discovery/capture without a real
// tmux/wezterm control socket. Grounded on the teacher's use of
// creack/pty for PTY sessions (internal/egg) and on
// other_examples' pane_streamer.go's pipe-pane/polling capture shape.
package localmux

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/creack/pty"

	"github.com/ehrlich-b/ft/internal/model"
	"github.com/ehrlich-b/ft/internal/mux"
)

// Pane is one locally spawned PTY-backed pane.
type Pane struct {
	id   uint64
	cmd  *exec.Cmd
	ptmx *os.File

	mu     sync.Mutex
	closed bool
}

// Client spawns and tails local PTY processes in lieu of a real
// multiplexer. NewClient starts with no panes; call Spawn to add one.
type Client struct {
	mu     sync.Mutex
	panes  map[uint64]*Pane
	nextID atomic.Uint64
}

// NewClient returns an empty localmux client.
func NewClient() *Client {
	return &Client{panes: make(map[uint64]*Pane)}
}

// Spawn starts name/args in a new PTY and registers it as a discoverable
// pane, returning its assigned id.
func (c *Client) Spawn(name string, args ...string) (uint64, error) {
	cmd := exec.Command(name, args...)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return 0, fmt.Errorf("spawn pty: %w", err)
	}

	id := c.nextID.Add(1)
	p := &Pane{id: id, cmd: cmd, ptmx: ptmx}

	c.mu.Lock()
	c.panes[id] = p
	c.mu.Unlock()

	return id, nil
}

// Discover implements mux.Client.
func (c *Client) Discover(ctx context.Context) ([]mux.DiscoveredPane, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]mux.DiscoveredPane, 0, len(c.panes))
	for id := range c.panes {
		out = append(out, mux.DiscoveredPane{ID: id, OriginDomain: "localmux", Cols: 80, Rows: 24})
	}
	return out, nil
}

// SupportsNativeEvents implements mux.Client; localmux only offers polling.
func (c *Client) SupportsNativeEvents() bool { return false }

// OpenEventListener implements mux.Client and always fails, since
// localmux has no native-event transport.
func (c *Client) OpenEventListener(ctx context.Context) (mux.EventListener, error) {
	return nil, fmt.Errorf("localmux: native events not supported")
}

// OpenTailer implements mux.Client, returning a polling tailer that
// reads whatever bytes have accumulated on the pane's PTY since the last
// call.
func (c *Client) OpenTailer(ctx context.Context, paneID uint64) (mux.Tailer, error) {
	c.mu.Lock()
	p, ok := c.panes[paneID]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("localmux: unknown pane %d", paneID)
	}
	return &tailer{pane: p}, nil
}

// Close terminates every spawned pane's process and PTY.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, p := range c.panes {
		if err := p.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Pane) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	_ = p.ptmx.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	return nil
}

type tailer struct {
	pane *Pane
}

func (t *tailer) PaneID() uint64 { return t.pane.id }

func (t *tailer) Poll(ctx context.Context) ([]byte, model.GapReason, error) {
	buf := make([]byte, 4096)
	n, err := t.pane.ptmx.Read(buf)
	if n > 0 {
		return buf[:n], "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return nil, "", nil
}

func (t *tailer) Close() error { return t.pane.close() }
