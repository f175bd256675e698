package signal

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"supermock/internal/core/domain"
)

// client is one websocket connection of an authenticated user. Rooms are
// guarded by the hub lock.
type client struct {
	hub     *Hub
	conn    *websocket.Conn
	userID  domain.UserID
	limiter *rate.Limiter

	// rooms the connection has joined
	rooms map[domain.SessionID]struct{}

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, userID domain.UserID) *client {
	c := &client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		rooms:  make(map[domain.SessionID]struct{}),
		send:   make(chan []byte, hub.cfg.SendBuffer),
	}
	if hub.cfg.MessagesPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(hub.cfg.MessagesPerSecond), hub.cfg.Burst)
	}
	return c
}

// enqueue hands msg to the write pump. A full buffer drops the message.
func (c *client) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.hub.logger.Warnw("Client send buffer full, message dropped", "user_id", c.userID)
		return false
	}
}

func (c *client) sendEvent(event domain.Event) {
	raw, err := json.Marshal(event)
	if err != nil {
		c.hub.logger.Errorw("Failed to encode hub message", "type", event.Type, "error", err)
		return
	}
	c.enqueue(raw)
}

func (c *client) sendError(sessionID domain.SessionID, code, message string) {
	event, err := domain.NewEvent(typeError, sessionID, ErrorPayload{Code: code, Message: message}, c.hub.now())
	if err != nil {
		return
	}
	c.sendEvent(event)
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump decodes client messages until the connection fails.
func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(context.Background(), c)
		c.conn.Close()
	}()

	if c.hub.cfg.MaxMessageBytes > 0 {
		c.conn.SetReadLimit(c.hub.cfg.MaxMessageBytes)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Infow("Error reading message from client", "user_id", c.userID, "error", err)
			}
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.sendError("", codeRateLimited, "too many messages")
			continue
		}

		var msg SignalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("", codeBadMessage, "invalid JSON message")
			continue
		}
		c.hub.handle(ctx, c, msg)
	}
}

// writePump is the only writer of the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.logger.Infow("Error writing to client", "user_id", c.userID, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
