package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/social-chat/backend/internal/errs"
	"github.com/zhouzirui/social-chat/backend/internal/model/chat"
)

type fakeVerifier struct {
	calls int
	id    chat.UserID
	err   error
}

func (f *fakeVerifier) Verify(context.Context, string) (chat.UserID, error) {
	f.calls++
	return f.id, f.err
}

func TestAuthenticateEmptyTokenSkipsVerifier(t *testing.T) {
	req := require.New(t)
	verifier := &fakeVerifier{id: 1}
	authenticator := NewAuthenticator(verifier)

	for _, token := range []string{"", "   "} {
		_, err := authenticator.Authenticate(context.Background(), token)
		req.True(errs.Is(err, errs.KindAuthentication))
	}
	req.Zero(verifier.calls)
}

func TestAuthenticateFailsClosed(t *testing.T) {
	req := require.New(t)
	unavailable := errors.New("verifier unavailable")
	authenticator := NewAuthenticator(&fakeVerifier{err: unavailable})

	id, err := authenticator.Authenticate(context.Background(), "abc")
	req.Zero(id)
	req.True(errs.Is(err, errs.KindAuthentication))
	req.ErrorIs(err, unavailable)
}

func TestAuthenticateRejectsNonPositiveIdentity(t *testing.T) {
	_, err := NewAuthenticator(&fakeVerifier{id: 0}).Authenticate(context.Background(), "abc")
	require.True(t, errs.Is(err, errs.KindAuthentication))
}

func TestAuthenticateWithJWT(t *testing.T) {
	req := require.New(t)
	token, err := NewIssuer("s", time.Hour).Issue(7)
	req.NoError(err)

	id, err := NewAuthenticator(NewJWTVerifier("s")).Authenticate(context.Background(), token)
	req.NoError(err)
	req.Equal(chat.UserID(7), id)
}

func TestTokenFromRequest(t *testing.T) {
	req := require.New(t)

	r := httptest.NewRequest("GET", "/ws?token=from-query", nil)
	r.Header.Set("Authorization", "Bearer from-header")
	req.Equal("from-query", TokenFromRequest(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "bearer from-header")
	req.Equal("from-header", TokenFromRequest(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "from-header")
	req.Empty(TokenFromRequest(r))
}
