package messenger

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// closeGracePeriod bounds how long Close waits to deliver the close frame.
const closeGracePeriod = time.Second

// WebSocket adapts a gorilla/websocket connection to [Port]. Each message is
// sent as a single text frame.
//
// gorilla/websocket supports one concurrent writer and one concurrent reader.
// WebSocket serializes writes; reads must come from a single goroutine, which
// is how [Messenger.Run] uses it.
type WebSocket struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// NewWebSocket wraps conn. The WebSocket owns conn from then on.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{conn: conn}
}

// Write sends data as one text message. A context deadline becomes the write
// deadline.
func (w *WebSocket) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	deadline, _ := ctx.Deadline()
	_ = w.conn.SetWriteDeadline(deadline)
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return w.translate(err)
	}
	return nil
}

// Read blocks until the next message arrives. Cancelling ctx does not
// interrupt a blocked Read; Close does.
func (w *WebSocket) Read(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		kind, data, err := w.conn.ReadMessage()
		if err != nil {
			return nil, w.translate(err)
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// Close sends a close frame (best effort) and closes the connection.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	w.mu.Unlock()

	return w.conn.Close()
}

// translate maps connection teardown errors to ErrClosed.
func (w *WebSocket) translate(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) || errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return err
}

var _ Port = (*WebSocket)(nil)
