package transport

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

const frameBufferSize = 64

// WebSocketConn is a Conn over gorilla/websocket text messages.
type WebSocketConn struct {
	dialer *websocket.Dialer
	header http.Header

	mu      sync.RWMutex
	conn    *websocket.Conn
	lastErr error

	writeMu sync.Mutex

	frames    chan string
	quitChan  chan struct{}
	closeOnce sync.Once
}

// NewWebSocketConn returns an unconnected channel. A nil dialer uses websocket.DefaultDialer.
func NewWebSocketConn(dialer *websocket.Dialer, header http.Header) *WebSocketConn {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &WebSocketConn{
		dialer:   dialer,
		header:   header,
		frames:   make(chan string, frameBufferSize),
		quitChan: make(chan struct{}),
	}
}

// WebSocketDialer is the default Dialer.
func WebSocketDialer() Conn {
	return NewWebSocketConn(nil, nil)
}

func (c *WebSocketConn) Connect(ctx context.Context, uri string) error {
	conn, resp, err := c.dialer.DialContext(ctx, uri, c.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.setError(err)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

func (c *WebSocketConn) Send(frame string) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}
	select {
	case <-c.quitChan:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		c.setError(err)
		return err
	}
	return nil
}

func (c *WebSocketConn) Receive(ctx context.Context) (string, error) {
	select {
	case frame, ok := <-c.frames:
		if !ok {
			if err := c.LastError(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return frame, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *WebSocketConn) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn == nil || c.lastErr != nil {
		return false
	}
	select {
	case <-c.quitChan:
		return false
	default:
		return true
	}
}

func (c *WebSocketConn) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *WebSocketConn) Close() error {
	var err error

	c.closeOnce.Do(func() {
		close(c.quitChan)

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		c.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		err = conn.Close()
	})

	return err
}

func (c *WebSocketConn) readLoop(conn *websocket.Conn) {
	defer close(c.frames)

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.quitChan:
			default:
				c.setError(err)
			}
			return
		}

		if mt != websocket.TextMessage {
			continue
		}

		select {
		case c.frames <- string(data):
		case <-c.quitChan:
			return
		}
	}
}

func (c *WebSocketConn) setError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastErr == nil {
		c.lastErr = err
	}
}
