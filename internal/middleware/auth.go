package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/zhouzirui/social-chat/backend/internal/model/chat"
	"github.com/zhouzirui/social-chat/backend/internal/service/auth"
	"github.com/zhouzirui/social-chat/backend/pkg/utils"
)

type contextKey struct{}

// Authenticator resolves the identity behind a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (chat.UserID, error)
}

// RequireUser JWT 认证中间件，通过后把用户 ID 放入 context。
func RequireUser(authenticator Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := authenticator.Authenticate(r.Context(), auth.TokenFromRequest(r))
			if err != nil {
				logger.Debug("request not authenticated", "path", r.URL.Path, "error", err)
				utils.RespondAppError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID stores the authenticated identity in ctx.
func WithUserID(ctx context.Context, id chat.UserID) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// UserID 从 context 获取当前用户。
func UserID(ctx context.Context) (chat.UserID, bool) {
	id, ok := ctx.Value(contextKey{}).(chat.UserID)
	return id, ok && id.Valid()
}
