package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/social-chat/backend/internal/handler/messages"
	"github.com/zhouzirui/social-chat/backend/internal/handler/realtime"
	"github.com/zhouzirui/social-chat/backend/internal/metrics"
	middlewarePkg "github.com/zhouzirui/social-chat/backend/internal/middleware"
	"github.com/zhouzirui/social-chat/backend/pkg/utils"
)

// Pinger reports whether the message store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Counter reports the number of online users.
type Counter interface {
	Count() int
}

// Deps collects everything the router mounts.
type Deps struct {
	Realtime       *realtime.Handler
	Messages       *messages.Handler
	Authenticator  middlewarePkg.Authenticator
	Store          Pinger
	Presence       Counter
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{"ok": true, "msg": "Social backend running"})
	})
	r.Get("/healthz", healthHandler(deps.Store, deps.Presence, deps.Logger))
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	// Realtime channel authenticates during the handshake
	deps.Realtime.RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewarePkg.RequireUser(deps.Authenticator, deps.Logger))
		deps.Messages.RegisterRoutes(api)
	})

	return r
}

func healthHandler(store Pinger, presence Counter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		online := 0
		if presence != nil {
			online = presence.Count()
		}

		if err := store.Ping(ctx); err != nil {
			logger.Warn("health check failed", "error", err)
			utils.RespondJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ok":     false,
				"store":  "unreachable",
				"online": online,
			})
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"ok":     true,
			"store":  "ok",
			"online": online,
		})
	}
}
