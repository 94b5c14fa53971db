package messages

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/social-chat/backend/internal/errs"
	"github.com/zhouzirui/social-chat/backend/internal/middleware"
	"github.com/zhouzirui/social-chat/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/social-chat/backend/internal/service/chat"
	"github.com/zhouzirui/social-chat/backend/pkg/utils"
)

// HistoryService loads conversations.
type HistoryService interface {
	History(ctx context.Context, userID, peer chat.UserID) ([]chat.Message, error)
}

// Handler 消息历史的HTTP处理器
type Handler struct {
	svc    HistoryService
	logger *slog.Logger
}

// New 创建消息处理器
func New(svc HistoryService, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes 注册消息相关的路由，调用方负责挂载认证中间件
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/messages/{withUserID}", h.handleConversation)
}

// handleConversation 返回当前用户与对方的全部消息，按时间升序
func (h *Handler) handleConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Authentication error")
		return
	}

	peer, err := chat.ParseUserID(chi.URLParam(r, "withUserID"))
	if err != nil || !peer.Valid() {
		utils.RespondError(w, http.StatusBadRequest, chatservice.MsgInvalidUserID)
		return
	}

	messages, err := h.svc.History(r.Context(), userID, peer)
	if err != nil {
		h.logger.Error("load conversation failed", "user_id", userID, "peer", peer, "kind", errs.KindOf(err), "error", err)
		utils.RespondAppError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, messages)
}
