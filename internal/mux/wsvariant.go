package mux

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// WebsocketEventListener is the over-the-network variant of the
// native-event transport (§6.6 is transport-agnostic; Unix-socket is
// primary). Grounded on the teacher's internal/relay/pty_relay.go use
// of github.com/coder/websocket for PTY event routing.
type WebsocketEventListener struct {
	srv     *http.Server
	events  chan NativeEvent
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// ListenWebsocket starts an HTTP server on addr upgrading every
// connection at path to a websocket, forwarding well-formed JSON
// NativeEvent messages onto Events().
func ListenWebsocket(addr, path string) (*WebsocketEventListener, error) {
	l := &WebsocketEventListener{events: make(chan NativeEvent, 256), closeCh: make(chan struct{})}

	mux := http.NewServeMux()
	mux.HandleFunc(path, l.handleUpgrade)
	l.srv = &http.Server{Addr: addr, Handler: mux}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		_ = l.srv.ListenAndServe()
	}()
	return l, nil
}

func (l *WebsocketEventListener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var wev wireEvent
		if err := json.Unmarshal(data, &wev); err != nil {
			_ = conn.Close(websocket.StatusUnsupportedData, "malformed native event frame")
			return
		}
		select {
		case l.events <- wev.toEvent():
		case <-l.closeCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Events implements EventListener.
func (l *WebsocketEventListener) Events() <-chan NativeEvent { return l.events }

// Close implements EventListener.
func (l *WebsocketEventListener) Close() error {
	close(l.closeCh)
	err := l.srv.Shutdown(context.Background())
	l.wg.Wait()
	close(l.events)
	if err != nil {
		return fmt.Errorf("shutdown websocket listener: %w", err)
	}
	return nil
}
