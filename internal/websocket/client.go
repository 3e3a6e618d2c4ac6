package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"minuteride/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512

	sendBuffer = 16
)

// Client is one dashboard connection.
type Client struct {
	Actor domain.Actor

	conn *websocket.Conn
	hub  *Hub
	send chan []byte
}

// NewClient creates a client for an upgraded connection.
func NewClient(actor domain.Actor, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		Actor: actor,
		conn:  conn,
		hub:   hub,
		send:  make(chan []byte, sendBuffer),
	}
}

type incomingMessage struct {
	Type string `json:"type"`
}

// ReadPump drains the connection until it closes. Clients only send pings.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("stream read failed", "actor_id", c.Actor.ID, "error", err)
			}
			return
		}

		var msg incomingMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			pong, _ := json.Marshal(map[string]string{
				"type":      "pong",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.hub.deliver(c, pong)
		}
	}
}

// WritePump writes queued messages and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
