package protocol

import (
	"encoding/json"

	"github.com/zhouzirui/social-chat/backend/internal/model/chat"
)

// Event names carried in the envelope.
const (
	EventPrivateMessage = "private_message"
	EventNewMessage     = "new_message"
	EventMessageSent    = "message_sent"
	EventOnlineUsers    = "online_users"
	EventError          = "error"
)

// Inbound is a frame received from a client.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Event is a frame sent to a client.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// ErrorData is the body of an error event.
type ErrorData struct {
	Msg string `json:"msg"`
}

func NewMessage(p chat.Payload) Event {
	return Event{Event: EventNewMessage, Data: p}
}

func MessageSent(p chat.Payload) Event {
	return Event{Event: EventMessageSent, Data: p}
}

// OnlineUsers always encodes a JSON array, never null.
func OnlineUsers(ids []chat.UserID) Event {
	if ids == nil {
		ids = []chat.UserID{}
	}
	return Event{Event: EventOnlineUsers, Data: ids}
}

func Error(msg string) Event {
	return Event{Event: EventError, Data: ErrorData{Msg: msg}}
}
