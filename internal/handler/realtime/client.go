package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/social-chat/backend/internal/config"
	"github.com/zhouzirui/social-chat/backend/internal/model/chat"
	"github.com/zhouzirui/social-chat/backend/internal/protocol"
	"github.com/zhouzirui/social-chat/backend/internal/service/presence"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendQueueFull    = errors.New("send queue full")
)

// Close codes and reasons sent to the peer.
const (
	CloseCodeSuperseded = 4000

	reasonSlow      = "send queue full"
	reasonReadError = "read failed"
	reasonWriteFail = "write failed"
)

// Client is one authenticated websocket connection. The read loop feeds the
// inbox, a single dispatcher drains it in order, and the write loop owns all
// writes to the socket.
type Client struct {
	id     string
	userID chat.UserID
	ws     *websocket.Conn
	cfg    config.RealtimeConfig
	logger *slog.Logger

	send  chan []byte
	inbox chan protocol.Inbound
	done  chan struct{}

	closeOnce   sync.Once
	mu          sync.Mutex
	closeReason string
}

func newClient(ws *websocket.Conn, userID chat.UserID, cfg config.RealtimeConfig, logger *slog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:     id,
		userID: userID,
		ws:     ws,
		cfg:    cfg,
		logger: logger.With("conn_id", id, "user_id", userID),
		send:   make(chan []byte, cfg.SendQueueSize),
		inbox:  make(chan protocol.Inbound, cfg.InboxSize),
		done:   make(chan struct{}),
	}
}

func (c *Client) ID() string          { return c.id }
func (c *Client) UserID() chat.UserID { return c.userID }

// Send encodes ev and queues it for the write loop. It never blocks: a client
// whose queue is full is closed.
func (c *Client) Send(ev protocol.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		c.logger.Warn("send queue full, closing connection", "queued", len(c.send))
		c.Close(reasonSlow)
		return ErrSendQueueFull
	}
}

// Close signals the write loop to send a close frame and drop the socket.
// Only the first reason is kept.
func (c *Client) Close(reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeReason = reason
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Client) reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeReason
}

// readLoop reads frames until the socket fails or the client is closed. The
// inbox is closed on return so the dispatcher finishes what was received.
func (c *Client) readLoop() {
	defer close(c.inbox)

	c.ws.SetReadLimit(c.cfg.MaxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Info("websocket read error", "error", err)
			}
			c.Close(reasonReadError)
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))

		var in protocol.Inbound
		if err := json.Unmarshal(raw, &in); err != nil || in.Event == "" {
			_ = c.Send(protocol.Error(MsgInvalidFrame))
			continue
		}

		select {
		case c.inbox <- in:
		case <-c.done:
			return
		}
	}
}

// dispatchLoop runs handle for each inbound event in arrival order.
func (c *Client) dispatchLoop(handle func(*Client, protocol.Inbound)) {
	for in := range c.inbox {
		handle(c, in)
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(c.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.ws.Close() // break readLoop
	}()

	for {
		select {
		case data := <-c.send:
			if err := c.write(websocket.TextMessage, data); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
				c.Close(reasonWriteFail)
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("websocket ping failed", "error", err)
				c.Close(reasonWriteFail)
				return
			}
		case <-c.done:
			reason := c.reason()
			// Shutdown requested, delivery of the close frame is best effort.
			msg := websocket.FormatCloseMessage(closeCode(reason), reason)
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteWait))
			return
		}
	}
}

func (c *Client) write(messageType int, payload []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	return c.ws.WriteMessage(messageType, payload)
}

func closeCode(reason string) int {
	switch reason {
	case presence.CloseSuperseded:
		return CloseCodeSuperseded
	case presence.CloseShutdown:
		return websocket.CloseGoingAway
	case reasonSlow:
		return websocket.CloseTryAgainLater
	default:
		return websocket.CloseNormalClosure
	}
}
