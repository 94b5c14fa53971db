package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/zhouzirui/social-chat/backend/internal/errs"
	"github.com/zhouzirui/social-chat/backend/internal/model/chat"
)

// Authenticator gates new connections. It fails closed: any verifier error
// refuses the connection.
type Authenticator struct {
	verifier Verifier
}

func NewAuthenticator(verifier Verifier) *Authenticator {
	return &Authenticator{verifier: verifier}
}

// Authenticate resolves the identity behind token.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (chat.UserID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, errs.Authentication("Authentication error: token required", nil)
	}

	id, err := a.verifier.Verify(ctx, token)
	if err != nil {
		return 0, errs.Authentication("Authentication error", err)
	}
	if !id.Valid() {
		return 0, errs.Authentication("Authentication error", ErrTokenInvalid)
	}
	return id, nil
}

// TokenFromRequest reads the token from the "token" query parameter or the
// Authorization bearer header. Browsers cannot set headers on a websocket
// handshake, hence the query parameter.
func TokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
