package events

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// SSEHandler streams events as server-sent events.
// Clients may filter via ?types=video_detected,tab_removed.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		filter := parseTypeFilter(r.URL.Query().Get("types"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		for {
			select {
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if filter != nil && !filter[evt.Type] {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, evt.Payload())
				flusher.Flush()
			}
		}
	}
}

// maxClientFrame bounds frames read from event stream clients, which only
// ever send control frames.
const maxClientFrame = 64 << 10

// wsConn serialises whole frames onto one connection.
type wsConn struct {
	mu   sync.Mutex
	conn net.Conn
}

func (c *wsConn) write(op ws.OpCode, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return wsutil.WriteServerMessage(c.conn, op, payload)
}

// readLoop answers pings and close frames until the client goes away.
// Data frames from the client are discarded.
func (c *wsConn) readLoop() error {
	for {
		hdr, err := ws.ReadHeader(c.conn)
		if err != nil {
			return err
		}
		if hdr.Length > maxClientFrame {
			return fmt.Errorf("client frame too large: %d bytes", hdr.Length)
		}
		payload := make([]byte, hdr.Length)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			return err
		}
		if hdr.Masked {
			ws.Cipher(payload, hdr.Mask, 0)
		}
		switch hdr.OpCode {
		case ws.OpPing:
			if err := c.write(ws.OpPong, payload); err != nil {
				return err
			}
		case ws.OpClose:
			_ = c.write(ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
			return io.EOF
		}
	}
}

// WSHandler streams events as JSON text frames over a WebSocket.
// Accepts the same ?types= filter as SSEHandler.
func WSHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := parseTypeFilter(r.URL.Query().Get("types"))

		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("event stream upgrade failed", "error", err)
			return
		}
		defer conn.Close()
		wc := &wsConn{conn: conn}

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			if err := wc.readLoop(); err != nil && err != io.EOF {
				slog.Debug("event stream read ended", "error", err)
			}
		}()

		for {
			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if filter != nil && !filter[evt.Type] {
					continue
				}
				if err := wc.write(ws.OpText, evt.Payload()); err != nil {
					slog.Debug("event stream write failed", "error", err)
					return
				}
			}
		}
	}
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
