package mysql

import (
	"context"
	"fmt"
	"time"

	ms "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/zhouzirui/social-chat/backend/internal/model/chat"
)

const schema = "CREATE TABLE IF NOT EXISTS messages (" +
	"id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT," +
	"sender_id BIGINT NOT NULL," +
	"receiver_id BIGINT NOT NULL," +
	"content TEXT NOT NULL," +
	"`read` TINYINT(1) NOT NULL DEFAULT 0," +
	"created_at DATETIME(3) NOT NULL," +
	"updated_at DATETIME(3) NOT NULL," +
	"PRIMARY KEY (id)," +
	"KEY idx_messages_pair (sender_id, receiver_id, created_at)" +
	") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"

const (
	insertMessage = "INSERT INTO messages (sender_id, receiver_id, content, `read`, created_at, updated_at) " +
		"VALUES (?, ?, ?, ?, ?, ?)"

	selectConversation = "SELECT id, sender_id, receiver_id, content, `read`, created_at FROM messages " +
		"WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?) " +
		"ORDER BY created_at ASC, id ASC"
)

// Store persists messages in a MySQL "messages" table.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open parses dsn, forces UTC time parsing and opens a pooled connection.
func Open(dsn string) (*Store, error) {
	cfg, err := ms.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	db, err := sqlx.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(64)
	db.SetMaxIdleConns(16)
	db.SetConnMaxLifetime(30 * time.Minute)

	return New(db), nil
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate creates the messages table when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Create(ctx context.Context, senderID, receiverID chat.UserID, content string) (chat.Message, error) {
	createdAt := s.now().UTC().Truncate(time.Millisecond)

	res, err := s.db.ExecContext(ctx, insertMessage, senderID, receiverID, content, false, createdAt, createdAt)
	if err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}

	return chat.Message{
		ID:         uint64(id),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  createdAt,
	}, nil
}

func (s *Store) Conversation(ctx context.Context, a, b chat.UserID) ([]chat.Message, error) {
	messages := make([]chat.Message, 0)
	if err := s.db.SelectContext(ctx, &messages, selectConversation, a, b, b, a); err != nil {
		return nil, fmt.Errorf("select conversation: %w", err)
	}
	return messages, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
