package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zhouzirui/social-chat/backend/internal/config"
	"github.com/zhouzirui/social-chat/backend/internal/model/chat"
	"github.com/zhouzirui/social-chat/backend/internal/store/badgerstore"
	"github.com/zhouzirui/social-chat/backend/internal/store/memory"
	"github.com/zhouzirui/social-chat/backend/internal/store/mysql"
)

// MessageStore durably records private messages. Create assigns the id and
// creation time.
type MessageStore interface {
	Create(ctx context.Context, senderID, receiverID chat.UserID, content string) (chat.Message, error)
	// Conversation returns every message exchanged between a and b, oldest first.
	Conversation(ctx context.Context, a, b chat.UserID) ([]chat.Message, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (MessageStore, error) {
	switch cfg.Driver {
	case "mysql":
		s, err := mysql.Open(cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("open mysql store: %w", err)
		}
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("connect mysql store: %w", err)
		}
		if cfg.AutoMigrate {
			if err := s.Migrate(ctx); err != nil {
				_ = s.Close()
				return nil, fmt.Errorf("migrate mysql store: %w", err)
			}
		}
		logger.Info("message store ready", "driver", cfg.Driver, "host", cfg.Host, "db", cfg.Name)
		return s, nil
	case "badger":
		s, err := badgerstore.Open(cfg.BadgerPath)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		logger.Info("message store ready", "driver", cfg.Driver, "path", cfg.BadgerPath)
		return s, nil
	case "memory":
		logger.Warn("message store is in-memory; messages are lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
