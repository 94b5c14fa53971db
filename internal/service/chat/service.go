package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/zhouzirui/social-chat/backend/internal/errs"
	"github.com/zhouzirui/social-chat/backend/internal/metrics"
	"github.com/zhouzirui/social-chat/backend/internal/model/chat"
	"github.com/zhouzirui/social-chat/backend/internal/protocol"
	"github.com/zhouzirui/social-chat/backend/internal/service/presence"
)

// Client-facing error messages.
const (
	MsgSendFailed       = "Could not send message"
	MsgRecipientMissing = "Recipient is required"
	MsgContentMissing   = "Content is required"
	MsgContentTooLong   = "Content is too long"
	MsgInvalidUserID    = "Invalid user id"
	MsgHistoryFailed    = "Could not load messages"
)

// Store is the slice of the message store the service needs.
type Store interface {
	Create(ctx context.Context, senderID, receiverID chat.UserID, content string) (chat.Message, error)
	Conversation(ctx context.Context, a, b chat.UserID) ([]chat.Message, error)
}

// Directory finds the live connection of a user.
type Directory interface {
	Lookup(id chat.UserID) (presence.Conn, bool)
}

// Sender is the connection a private_message arrived on.
type Sender interface {
	UserID() chat.UserID
	Send(ev protocol.Event) error
}

// PrivateMessage is the data of an inbound private_message event.
type PrivateMessage struct {
	To      chat.UserID `json:"to" validate:"required,gt=0"`
	Content string      `json:"content" validate:"required"`
}

// Options tunes the service.
type Options struct {
	MaxContentLength int
	// PersistTimeout bounds a store call; zero leaves it unbounded.
	PersistTimeout time.Duration
}

// Service persists private messages and fans them out to the sender and an
// online recipient.
type Service struct {
	store     Store
	directory Directory
	validate  *validator.Validate
	opts      Options
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewService(store Store, directory Directory, logger *slog.Logger, m *metrics.Metrics, opts Options) *Service {
	return &Service{
		store:     store,
		directory: directory,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		opts:      opts,
		logger:    logger,
		metrics:   m,
	}
}

// SendPrivateMessage stores msg from sender and delivers it. The sender
// identity is always the one bound to the connection.
//
// A rejected or unpersisted message produces exactly one error event to the
// sender and nothing else. A stored message is pushed as new_message to the
// recipient when online and always acknowledged with message_sent.
func (s *Service) SendPrivateMessage(ctx context.Context, sender Sender, msg PrivateMessage) error {
	from := sender.UserID()
	logger := s.logger.With("user_id", from, "to", msg.To)

	if err := s.check(msg); err != nil {
		s.metrics.MessageFailed(metrics.ReasonValidation)
		s.reply(logger, sender, protocol.Error(errs.PublicMessage(err)))
		return err
	}

	stored, err := s.persist(ctx, from, msg)
	if err != nil {
		s.metrics.MessageFailed(metrics.ReasonPersistence)
		logger.Error("persist message failed", "error", err)
		s.reply(logger, sender, protocol.Error(MsgSendFailed))
		return errs.Persistence(MsgSendFailed, err)
	}

	payload := stored.Payload()
	if conn, ok := s.directory.Lookup(msg.To); ok {
		if err := conn.Send(protocol.NewMessage(payload)); err != nil {
			logger.Debug("new_message not delivered", "message_id", stored.ID, "error", err)
		} else {
			s.metrics.MessageDelivered()
		}
	}

	s.reply(logger, sender, protocol.MessageSent(payload))
	return nil
}

// History returns the conversation between userID and peer, oldest first.
func (s *Service) History(ctx context.Context, userID, peer chat.UserID) ([]chat.Message, error) {
	if !peer.Valid() {
		return nil, errs.Validation(MsgInvalidUserID, nil)
	}
	messages, err := s.store.Conversation(ctx, userID, peer)
	if err != nil {
		return nil, errs.Persistence(MsgHistoryFailed, err)
	}
	return messages, nil
}

func (s *Service) check(msg PrivateMessage) error {
	if err := s.validate.Struct(msg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && fieldErrs[0].Field() == "To" {
			return errs.Validation(MsgRecipientMissing, err)
		}
		return errs.Validation(MsgContentMissing, err)
	}
	if strings.TrimSpace(msg.Content) == "" {
		return errs.Validation(MsgContentMissing, nil)
	}
	if s.opts.MaxContentLength > 0 {
		if err := s.validate.Var(msg.Content, fmt.Sprintf("max=%d", s.opts.MaxContentLength)); err != nil {
			return errs.Validation(MsgContentTooLong, err)
		}
	}
	return nil
}

// persist runs the store call detached from the connection: a disconnect
// must not abort a write that has already been issued.
func (s *Service) persist(ctx context.Context, from chat.UserID, msg PrivateMessage) (chat.Message, error) {
	ctx = context.WithoutCancel(ctx)
	if s.opts.PersistTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.PersistTimeout)
		defer cancel()
	}

	start := time.Now()
	stored, err := s.store.Create(ctx, from, msg.To, msg.Content)
	if err != nil {
		return chat.Message{}, err
	}
	s.metrics.MessagePersisted(time.Since(start).Seconds())
	return stored, nil
}

func (s *Service) reply(logger *slog.Logger, sender Sender, ev protocol.Event) {
	if err := sender.Send(ev); err != nil {
		logger.Debug("reply not delivered", "event", ev.Event, "error", err)
	}
}
