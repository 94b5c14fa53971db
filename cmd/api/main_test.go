package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/zhouzirui/social-chat/backend/internal/config"
)

func TestRunServerStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	srv := &http.Server{Addr: addr, Handler: http.NotFoundHandler()}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv, time.Second) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServer returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("runServer did not stop")
	}
}

func TestNewLoggerFormat(t *testing.T) {
	logger := newLogger(config.LogConfig{Level: "debug", Format: "text"})
	if !logger.Enabled(context.Background(), -4) {
		t.Fatal("expected debug level enabled")
	}
	if newLogger(config.LogConfig{Level: "warn", Format: "json"}).Enabled(context.Background(), 0) {
		t.Fatal("info should be disabled at warn level")
	}
}
