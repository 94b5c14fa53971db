package chat

import "time"

// Message is a persisted private message. It is never mutated once stored.
type Message struct {
	ID         uint64    `json:"id" db:"id"`
	SenderID   UserID    `json:"senderId" db:"sender_id"`
	ReceiverID UserID    `json:"receiverId" db:"receiver_id"`
	Content    string    `json:"content" db:"content"`
	Read       bool      `json:"read" db:"read"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// Payload is the realtime view of a message shared by new_message and message_sent.
type Payload struct {
	ID         uint64    `json:"id"`
	SenderID   UserID    `json:"senderId"`
	ReceiverID UserID    `json:"receiverId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Payload builds the delivery payload from the stored record.
func (m Message) Payload() Payload {
	return Payload{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
	}
}
