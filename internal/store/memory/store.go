package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/zhouzirui/social-chat/backend/internal/model/chat"
)

var ErrClosed = errors.New("memory store closed")

// Store keeps messages in process memory, suitable for development and tests.
type Store struct {
	mu       sync.RWMutex
	nextID   uint64
	messages []chat.Message
	closed   bool
	now      func() time.Time
}

func New() *Store {
	return &Store{
		messages: make([]chat.Message, 0, 64),
		now:      time.Now,
	}
}

// Create appends a message and assigns its id and timestamp.
func (s *Store) Create(ctx context.Context, senderID, receiverID chat.UserID, content string) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return chat.Message{}, ErrClosed
	}

	s.nextID++
	message := chat.Message{
		ID:         s.nextID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  s.now().UTC().Truncate(time.Millisecond),
	}
	s.messages = append(s.messages, message)
	return message, nil
}

// Conversation returns the messages between a and b in insertion order.
func (s *Store) Conversation(_ context.Context, a, b chat.UserID) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	return lo.Filter(s.messages, func(m chat.Message, _ int) bool {
		return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
	}), nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
