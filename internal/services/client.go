package services

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/saty-git24/live-polling-system/internal/config"
)

// Conn is the subset of *websocket.Conn the hub writes to. Tests substitute
// a recording mock.
type Conn interface {
	Write(ctx context.Context, typ websocket.MessageType, data []byte) error
	Ping(ctx context.Context) error
	Close(code websocket.StatusCode, reason string) error
}

// Client represents a single WebSocket connection with its own send goroutine
type Client struct {
	ID   string
	conn Conn
	send chan []byte
	hub  *Hub
	log  *zap.Logger

	// Rate limiting
	messageCount int
	rateLimitMu  sync.Mutex
	lastReset    time.Time

	// Lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	closed  bool
	closeMu sync.Mutex
}

// NewClient creates a new client instance
func NewClient(id string, conn Conn, hub *Hub, log *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		ID:        id,
		conn:      conn,
		send:      make(chan []byte, config.ClientSendBufferSize),
		hub:       hub,
		log:       log,
		lastReset: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins the client's write pump. The read loop lives in the
// WebSocket handler, which owns message dispatch.
func (c *Client) Start() {
	go c.writePump()
}

// writePump handles outgoing messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Channel closed, connection is closing
				_ = c.conn.Close(websocket.StatusNormalClosure, "")
				return
			}

			writeCtx, cancel := context.WithTimeout(c.ctx, config.WriteTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()

			if err != nil {
				c.log.Debug("write error", zap.String("connection_id", c.ID), zap.Error(err))
				c.hub.metrics.IncrementBroadcastErrors()
				return
			}
			c.hub.metrics.IncrementMessagesSent()

		case <-ticker.C:
			// Ping keeps the connection alive; a peer that cannot pong
			// within the pong window is dead.
			pingCtx, cancel := context.WithTimeout(c.ctx, config.PongTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()

			if err != nil {
				c.log.Debug("ping error", zap.String("connection_id", c.ID), zap.Error(err))
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// CheckRateLimit verifies the client hasn't exceeded message rate limits
func (c *Client) CheckRateLimit() bool {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	now := time.Now()
	if now.Sub(c.lastReset) > config.RateLimitWindow {
		c.messageCount = 0
		c.lastReset = now
	}

	c.messageCount++
	return c.messageCount <= config.MaxMessagesPerSecond
}

// Send queues a message for sending to the client. Delivery is best-effort:
// a full buffer means the client is too slow and gets evicted.
func (c *Client) Send(message []byte) bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		c.log.Warn("send buffer full, closing slow client", zap.String("connection_id", c.ID))
		c.hub.metrics.IncrementBroadcastErrors()
		go c.Close()
		return false
	}
}

// Close cleanly shuts down the client connection
func (c *Client) Close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.cancel()
	close(c.send)
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}
