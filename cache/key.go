package cache

import (
	"fmt"

	"booking-sync/domain"
)

// Key identifies a cached resource: resource kind plus identifying
// parameters. All cross-component signaling happens by invalidating
// keys, never by direct calls between components.
type Key string

func MessagesKey(chat domain.ChatID) Key {
	return Key(fmt.Sprintf("messages:%d", chat))
}

func ChatKey(chat domain.ChatID) Key {
	return Key(fmt.Sprintf("chat:%d", chat))
}

func NotificationsKey() Key {
	return Key("notifications")
}
