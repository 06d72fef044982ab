// Package domain contains core concepts of the booking chat system.
// This file defines Message entities and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat message.
// Once created it is never edited or deleted.
type Message struct {
	ID         uuid.UUID // unique identifier
	Chat       ChatID
	SenderID   string
	Content    string
	Attachment *Attachment
	Private    bool // staff-only visibility
	CreatedAt  time.Time
}

// Less orders messages by creation time, ties broken by identity
// (insertion order). This is the only ordering the core recognizes.
func Less(a, b Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return strings.Compare(a.ID.String(), b.ID.String()) < 0
}
