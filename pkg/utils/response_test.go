package utils

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zhouzirui/social-chat/backend/internal/errs"
)

func TestRespondError(t *testing.T) {
	resp := httptest.NewRecorder()

	RespondError(resp, http.StatusUnauthorized, "Authentication error")

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if body := resp.Body.String(); body != "{\"error\":\"Authentication error\"}\n" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestRespondAppErrorHidesCause(t *testing.T) {
	resp := httptest.NewRecorder()

	RespondAppError(resp, errs.Persistence("Could not load messages", errors.New("dial tcp 10.0.0.5:3306: refused")))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if body := resp.Body.String(); body != "{\"error\":\"Could not load messages\"}\n" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"authentication": {err: errs.Authentication("Authentication error", nil), want: http.StatusUnauthorized},
		"validation":     {err: errs.Validation("Invalid user id", nil), want: http.StatusBadRequest},
		"persistence":    {err: errs.Persistence("Could not send message", nil), want: http.StatusInternalServerError},
		"plain error":    {err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for name, tc := range cases {
		if got := StatusFor(tc.err); got != tc.want {
			t.Fatalf("%s: got %d want %d", name, got, tc.want)
		}
	}
}
