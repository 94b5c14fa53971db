package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/social-chat/backend/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenMemory(t *testing.T) {
	req := require.New(t)

	s, err := Open(context.Background(), config.StoreConfig{Driver: "memory"}, discardLogger())
	req.NoError(err)
	defer s.Close()

	msg, err := s.Create(context.Background(), 1, 2, "hello")
	req.NoError(err)
	req.NotZero(msg.ID)
}

func TestOpenBadger(t *testing.T) {
	req := require.New(t)

	s, err := Open(context.Background(), config.StoreConfig{Driver: "badger", BadgerPath: t.TempDir()}, discardLogger())
	req.NoError(err)
	req.NoError(s.Ping(context.Background()))
	req.NoError(s.Close())
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "cassandra"}, discardLogger())
	require.ErrorContains(t, err, "cassandra")
}
