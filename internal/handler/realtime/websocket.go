package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/zhouzirui/social-chat/backend/internal/config"
	"github.com/zhouzirui/social-chat/backend/internal/errs"
	"github.com/zhouzirui/social-chat/backend/internal/metrics"
	"github.com/zhouzirui/social-chat/backend/internal/model/chat"
	"github.com/zhouzirui/social-chat/backend/internal/protocol"
	"github.com/zhouzirui/social-chat/backend/internal/service/auth"
	chatservice "github.com/zhouzirui/social-chat/backend/internal/service/chat"
	"github.com/zhouzirui/social-chat/backend/internal/service/presence"
	"github.com/zhouzirui/social-chat/backend/pkg/utils"
)

// Client-facing error messages produced by the transport.
const (
	MsgInvalidFrame   = "Invalid message format"
	MsgInvalidPayload = "Invalid message payload"
)

// Outcomes recorded for connection attempts.
const (
	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
	outcomeUpgrade  = "upgrade_failed"
)

// Authenticator resolves the identity behind a handshake token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (chat.UserID, error)
}

// MessageSender delivers private messages.
type MessageSender interface {
	SendPrivateMessage(ctx context.Context, sender chatservice.Sender, msg chatservice.PrivateMessage) error
}

// Handler WebSocket 实时消息处理器
type Handler struct {
	auth     Authenticator
	registry *presence.Registry
	chat     MessageSender
	cfg      config.RealtimeConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

// New 创建实时消息处理器
func New(authenticator Authenticator, registry *presence.Registry, sender MessageSender, cfg config.RealtimeConfig, allowedOrigins []string, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		auth:     authenticator,
		registry: registry,
		chat:     sender,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册 WebSocket 路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

// handleWebSocket authenticates before the upgrade so a refused client never
// reaches the registry.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.Authenticate(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		h.metrics.ConnectionAttempt(outcomeRejected)
		h.logger.Info("websocket connection refused", "remote_addr", r.RemoteAddr, "error", err)
		utils.RespondAppError(w, err)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		h.metrics.ConnectionAttempt(outcomeUpgrade)
		h.logger.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}
	h.metrics.ConnectionAttempt(outcomeAccepted)
	h.metrics.ConnectionOpened()
	defer h.metrics.ConnectionClosed()

	client := newClient(ws, userID, h.cfg, h.logger)
	client.logger.Info("websocket connected", "remote_addr", r.RemoteAddr)

	ctx := context.WithoutCancel(r.Context())
	dispatched := make(chan struct{})
	go client.writeLoop()
	go func() {
		defer close(dispatched)
		client.dispatchLoop(func(c *Client, in protocol.Inbound) {
			h.dispatch(ctx, c, in)
		})
	}()

	h.registry.Register(userID, client)

	client.readLoop()

	h.registry.Unregister(userID, client)
	<-dispatched

	client.logger.Info("websocket disconnected", "reason", client.reason())
}

// dispatch handles one inbound event. Any failure, including a panic, stays
// within this event and this connection.
func (h *Handler) dispatch(ctx context.Context, c *Client, in protocol.Inbound) {
	defer func() {
		if rec := recover(); rec != nil {
			err := errs.Internal("internal error", fmt.Errorf("panic: %v", rec))
			c.logger.Error("event handler panicked", "event", in.Event, "error", err, "stack", string(debug.Stack()))
			h.metrics.MessageFailed(metrics.ReasonInternal)
			_ = c.Send(protocol.Error(errs.PublicMessage(err)))
		}
	}()

	switch in.Event {
	case protocol.EventPrivateMessage:
		h.handlePrivateMessage(ctx, c, in.Data)
	default:
		_ = c.Send(protocol.Error("Unsupported event: " + in.Event))
	}
}

func (h *Handler) handlePrivateMessage(ctx context.Context, c *Client, raw json.RawMessage) {
	var msg chatservice.PrivateMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.metrics.MessageFailed(metrics.ReasonValidation)
		_ = c.Send(protocol.Error(MsgInvalidPayload))
		return
	}

	if err := h.chat.SendPrivateMessage(ctx, c, msg); err != nil {
		c.logger.Warn("private message rejected", "kind", errs.KindOf(err), "error", err)
	}
}

// originChecker allows requests without an Origin header (non-browser
// clients) and origins listed in allowed; "*" allows everything.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || lo.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return lo.Contains(allowed, origin) || lo.Contains(allowed, u.Host)
	}
}
