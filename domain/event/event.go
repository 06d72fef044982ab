package event

import (
	"booking-sync/domain"
	"github.com/google/uuid"
	"time"
)

// PushEvent is an inbound event delivered over the live connection.
// Every event is scoped to a chat id; events for chats the connection
// has not joined are dropped by the push manager.
type PushEvent interface {
	ChatID() domain.ChatID
}

// NewMessage signals that a message was appended to a chat.
// The payload carries the message so a UI may display a preview, but
// the sync core only uses the chat scope: its reaction is a cache
// invalidation, never a direct write.
type NewMessage struct {
	ID      uuid.UUID `json:"id"`
	Chat    int64     `json:"chatId"`
	Sender  string    `json:"sender"`
	Content string    `json:"content"`
	At      time.Time `json:"createdAt"`
}

func (e NewMessage) ChatID() domain.ChatID {
	return domain.ChatID(e.Chat)
}

// ChatClosed signals that the chat was closed server-side.
// Closing is terminal, so observers must stop accepting sends.
type ChatClosed struct {
	Chat int64 `json:"chatId"`
}

func (e ChatClosed) ChatID() domain.ChatID {
	return domain.ChatID(e.Chat)
}

// Wire event names shared by client and backend.
const (
	JoinChat  = "join_chat"
	LeaveChat = "leave_chat"
	NewMsg    = "new_message"
	ChatClose = "chat_closed"
)
