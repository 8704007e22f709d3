package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fieldwork/taskd/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Client is one authenticated websocket connection. The identity is fixed at
// handshake; there is no per-message re-authentication.
type Client struct {
	UserID string
	Role   models.Role

	conn *websocket.Conn

	// mu guards closed and every send on the channel, so a concurrent
	// close can never race a publisher into a send on a closed channel.
	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// NewClient wraps an upgraded connection.
func NewClient(userID string, role models.Role, conn *websocket.Conn) *Client {
	return &Client{
		UserID: userID,
		Role:   role,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
}

// trySend queues raw for delivery. open is false when the client is already
// closed; sent is false when the buffer is full and the client should be
// dropped as too slow.
func (c *Client) trySend(raw []byte) (sent, open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, false
	}
	select {
	case c.send <- raw:
		return true, true
	default:
		return false, true
	}
}

// close marks the client closed and closes the send channel exactly once,
// which ends WritePump after it drains.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump consumes the connection until it errors or closes, then detaches.
// Inbound payloads are discarded; the channel is server-to-client only.
func (c *Client) ReadPump(hub *Hub) {
	defer func() {
		hub.Detach(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// WritePump drains the send channel onto the wire and keeps the connection
// alive with pings. Exits when the channel closes or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
