package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/metrics"
)

// client is one websocket connection. It holds the authenticated user and at
// most one room association, both pinned to the connection's lifetime.
type client struct {
	id   uint64
	conn *websocket.Conn
	user domain.User

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	room string
}

func newClient(id uint64, conn *websocket.Conn, user domain.User, queue int) *client {
	return &client{
		id:   id,
		conn: conn,
		user: user,
		send: make(chan []byte, queue),
		done: make(chan struct{}),
	}
}

func (c *client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.room
}

func (c *client) setRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.room = room
}

// enqueue never blocks. A client that cannot keep up is closed.
func (c *client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		slog.Warn("gateway: send queue full, closing connection", "conn", c.id, "user", c.user.ID)
		metrics.DroppedClients.Inc()
		c.close()
		return false
	}
}

// close stops the writer, which then closes the socket.
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump reads frames until the connection fails and hands each one to handle.
// Frames of one connection are handled in order.
func (c *client) readPump(ctx context.Context, t timeouts, handle func(ctx context.Context, c *client, msg []byte)) {
	c.conn.SetReadLimit(t.readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(t.read))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(t.read))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.InfoContext(ctx, "gateway: unexpected close", "conn", c.id, "error", err)
			}
			return
		}

		handle(ctx, c, msg)
	}
}

// writePump is the only writer of the connection.
func (c *client) writePump(t timeouts) {
	ticker := time.NewTicker(t.ping)
	defer func() {
		ticker.Stop()
		c.close()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(t.write))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(t.write))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(t.write))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

type timeouts struct {
	ping      time.Duration
	read      time.Duration
	write     time.Duration
	readLimit int64
}
