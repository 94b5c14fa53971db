package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/zhouzirui/social-chat/backend/internal/errs"
)

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Warn("failed to encode response", "status", status, "error", err)
	}
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}

// RespondAppError 按错误类型选择状态码，只把可公开的消息返回给客户端
func RespondAppError(w http.ResponseWriter, err error) {
	RespondError(w, StatusFor(err), errs.PublicMessage(err))
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindAuthentication:
		return http.StatusUnauthorized
	case errs.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
