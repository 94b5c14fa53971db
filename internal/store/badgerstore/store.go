package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/zhouzirui/social-chat/backend/internal/model/chat"
)

var sequenceKey = []byte("seq:messages")

// Store keeps messages in an embedded badger database. Messages are keyed by
// conversation so a prefix scan returns one conversation in creation order:
//
//	msg:<low user>:<high user>:<created unix nanos>:<id>
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
	now func() time.Time
}

// Open opens (or creates) the database under path.
func Open(path string) (*Store, error) {
	return open(badger.DefaultOptions(path).WithLogger(nil))
}

// openInMemory opens a database that lives only as long as the process.
func openInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	seq, err := db.GetSequence(sequenceKey, 100)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &Store{db: db, seq: seq, now: time.Now}, nil
}

func conversationPrefix(a, b chat.UserID) []byte {
	if a > b {
		a, b = b, a
	}
	return fmt.Appendf(nil, "msg:%020d:%020d:", a, b)
}

func messageKey(m chat.Message) []byte {
	prefix := conversationPrefix(m.SenderID, m.ReceiverID)
	return fmt.Appendf(prefix, "%020d:%020d", m.CreatedAt.UnixNano(), m.ID)
}

func (s *Store) Create(ctx context.Context, senderID, receiverID chat.UserID, content string) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}

	// The sequence starts at zero; ids start at one.
	next, err := s.seq.Next()
	if err != nil {
		return chat.Message{}, fmt.Errorf("next message id: %w", err)
	}

	message := chat.Message{
		ID:         next + 1,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  s.now().UTC().Truncate(time.Millisecond),
	}
	value, err := json.Marshal(message)
	if err != nil {
		return chat.Message{}, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), value)
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("write message: %w", err)
	}
	return message, nil
}

func (s *Store) Conversation(ctx context.Context, a, b chat.UserID) ([]chat.Message, error) {
	messages := make([]chat.Message, 0)
	prefix := conversationPrefix(a, b)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var m chat.Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read conversation: %w", err)
	}
	return messages, nil
}

func (s *Store) Ping(context.Context) error {
	if s.db.IsClosed() {
		return badger.ErrDBClosed
	}
	return nil
}

func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}
