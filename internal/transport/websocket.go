package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// closeGrace bounds how long Close waits to send the close frame.
const closeGrace = time.Second

// WSConn presents a WebSocket connection as a byte stream. Message
// boundaries are ignored on read: each message is just another chunk for the
// decoder. Each Write is sent as one message.
type WSConn struct {
	conn        *websocket.Conn
	messageType int
	reader      io.Reader

	wmu sync.Mutex
}

// NewWSConn wraps an established WebSocket connection. Writes use text
// messages until SetBinary is called.
func NewWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{conn: conn, messageType: websocket.TextMessage}
}

// DialWebSocket opens a WebSocket client connection to url.
func DialWebSocket(ctx context.Context, url string, header http.Header) (*WSConn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial websocket %s: %w", url, err)
	}
	return NewWSConn(conn), nil
}

// SetBinary switches outgoing messages to binary frames.
func (w *WSConn) SetBinary(binary bool) {
	w.wmu.Lock()
	defer w.wmu.Unlock()
	if binary {
		w.messageType = websocket.BinaryMessage
	} else {
		w.messageType = websocket.TextMessage
	}
}

// Read reads from the current message, moving to the next one when it is
// exhausted. A normal close from the peer reads as io.EOF.
func (w *WSConn) Read(p []byte) (int, error) {
	for {
		if w.reader == nil {
			_, r, err := w.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
					return 0, io.EOF
				}
				return 0, err
			}
			w.reader = r
		}

		n, err := w.reader.Read(p)
		if errors.Is(err, io.EOF) {
			w.reader = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

// Write sends p as a single message.
func (w *WSConn) Write(p []byte) (int, error) {
	w.wmu.Lock()
	defer w.wmu.Unlock()
	if err := w.conn.WriteMessage(w.messageType, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a normal close frame and closes the connection.
func (w *WSConn) Close() error {
	w.wmu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
	w.wmu.Unlock()
	return w.conn.Close()
}

// RemoteAddr returns the peer address.
func (w *WSConn) RemoteAddr() net.Addr { return w.conn.RemoteAddr() }

// LocalAddr returns the local address.
func (w *WSConn) LocalAddr() net.Addr { return w.conn.LocalAddr() }
