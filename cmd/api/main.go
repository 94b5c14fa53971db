package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/social-chat/backend/internal/config"
	"github.com/zhouzirui/social-chat/backend/internal/handler"
	"github.com/zhouzirui/social-chat/backend/internal/handler/messages"
	"github.com/zhouzirui/social-chat/backend/internal/handler/realtime"
	"github.com/zhouzirui/social-chat/backend/internal/metrics"
	"github.com/zhouzirui/social-chat/backend/internal/service/auth"
	"github.com/zhouzirui/social-chat/backend/internal/service/chat"
	"github.com/zhouzirui/social-chat/backend/internal/service/presence"
	"github.com/zhouzirui/social-chat/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, continuing with system environment variables only", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	messageStore, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := messageStore.Close(); err != nil {
			logger.Warn("failed to close message store", "error", err)
		}
	}()

	m := metrics.New()
	registry := presence.NewRegistry(
		presence.NewBroadcaster(logger, m),
		logger,
		presence.WithEviction(cfg.Realtime.EvictSuperseded),
	)

	chatService := chat.NewService(messageStore, registry, logger, m, chat.Options{
		MaxContentLength: cfg.Realtime.MaxContentLength,
		PersistTimeout:   cfg.Realtime.PersistTimeout,
	})
	authenticator := auth.NewAuthenticator(auth.NewJWTVerifier(cfg.Auth.Secret))

	router := handler.NewRouter(handler.Deps{
		Realtime:       realtime.New(authenticator, registry, chatService, cfg.Realtime, cfg.Server.AllowedOrigins, logger, m),
		Messages:       messages.New(chatService, logger),
		Authenticator:  authenticator,
		Store:          messageStore,
		Presence:       registry,
		Metrics:        m,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	addr, err := cfg.Server.Addr()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	// Hijacked websocket connections are not tracked by Shutdown; close them
	// through the registry once the listener stops.
	srv.RegisterOnShutdown(registry.Shutdown)

	logger.Info("social backend listening", "addr", addr, "store", cfg.Store.Driver)
	return runServer(ctx, srv, cfg.Server.ShutdownTimeout)
}

func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
