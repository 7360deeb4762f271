package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxFrameSize   = 16 * 1024
	sendBufferSize = 256
)

// Client is one authenticated socket connection
type Client struct {
	ID     string
	UserID uint
	Role   string
	Send   chan []byte

	conn *websocket.Conn
	hub  *Hub
	ctx  context.Context
	log  *zap.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

// NewClient wraps conn for userID. conn may be nil for clients driven directly through the hub.
func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, userID uint, role string) *Client {
	id := uuid.NewString()
	return &Client{
		ID:     id,
		UserID: userID,
		Role:   role,
		Send:   make(chan []byte, sendBufferSize),
		conn:   conn,
		hub:    hub,
		ctx:    ctx,
		log:    hub.log.With(zap.String("client_id", id), zap.Uint("user_id", userID)),

		closing: make(chan struct{}),
	}
}

// shutdown asks the write pump to send a going-away close frame and drop the connection
func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.closing) })
}

// Run registers the client and pumps frames until the connection closes
func (c *Client) Run() {
	c.hub.register(c)
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		c.hub.HandleFrame(c.ctx, c, message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one frame per event; clients parse each text message as a single JSON object
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-c.closing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue never blocks; a slow client loses the frame
func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.Send <- frame:
		return true
	default:
		c.log.Warn("client send buffer full, dropping frame")
		return false
	}
}

// SendEvent encodes and queues one event for this client
func (c *Client) SendEvent(event string, data interface{}) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		c.log.Error("failed to encode frame", zap.String("event", event), zap.Error(err))
		return
	}
	c.enqueue(frame)
}

// SendError queues an error event
func (c *Client) SendError(message string) {
	c.SendEvent(EventError, errorPayload{Message: message})
}
