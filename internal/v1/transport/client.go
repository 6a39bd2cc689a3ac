// Package transport owns the websocket edge: upgrading HTTP requests,
// pumping frames between sockets and the session layer, and nothing else.
// Game semantics live entirely behind the SessionHandler interface.
package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jobwars/server/internal/v1/logging"
	"github.com/jobwars/server/internal/v1/session"
)

// writeWait bounds how long a single socket write may stall.
const writeWait = 10 * time.Second

// sendBuffer is the per-client outbound queue depth. A client that falls
// this far behind is treated as dead.
const sendBuffer = 256

// wsConnection defines the interface for WebSocket connection operations.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
}

// SessionHandler is the session layer as the transport sees it.
type SessionHandler interface {
	Connect(conn session.Conn)
	HandleFrame(conn session.Conn, raw []byte)
	Disconnect(conn session.Conn)
}

// Client is one websocket connection. It implements session.Conn: the
// session layer enqueues on Send and force-closes with Close, while the
// two pumps move bytes underneath.
type Client struct {
	conn     wsConnection
	sessions SessionHandler

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	send chan []byte
}

func newClient(conn wsConnection, sessions SessionHandler) *Client {
	return &Client{
		conn:     conn,
		sessions: sessions,
		send:     make(chan []byte, sendBuffer),
	}
}

// Send enqueues a text frame. It never blocks: a closed client or a full
// buffer returns an error so the caller can drop the connection.
func (c *Client) Send(data []byte) (err error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return errors.New("client closed")
	}
	c.mu.RUnlock()

	// The channel can close between the flag check and the enqueue.
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("client closed")
		}
	}()

	select {
	case c.send <- data:
		return nil
	default:
		logging.Warn(context.Background(), "client send buffer full, dropping connection")
		c.Close()
		return errors.New("send buffer full")
	}
}

// Close tears the connection down. Closing the send channel makes the
// writePump drain, send a close frame, and close the socket; the readPump
// then unblocks and reports the disconnect to the session layer.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.send)
	})
}

// readPump forwards inbound text frames to the session layer until the
// socket dies, then reports the disconnect exactly once.
func (c *Client) readPump() {
	defer func() {
		c.sessions.Disconnect(c)
		c.Close()
		c.conn.Close()
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn(context.Background(), "websocket read failed", zap.Error(err))
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.sessions.HandleFrame(c, data)
	}
}

// writePump serializes all socket writes. Frames leave in the order they
// were enqueued; channel close flushes a close frame and ends the pump.
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logging.Warn(context.Background(), "websocket write failed", zap.Error(err))
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
