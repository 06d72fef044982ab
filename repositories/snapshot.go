//go:generate go run go.uber.org/mock/mockgen -source=snapshot.go -destination=../mocks/mock_snapshot_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"booking-sync/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type ISnapshotRepository interface {
	StoreMessages(chat domain.ChatID, messages []domain.Message) error
	GetMessages(chat domain.ChatID) ([]domain.Message, error)
	StoreNotifications(notifications []domain.Notification) error
	GetNotifications() ([]domain.Notification, error)
}

// SnapshotRepository persists the last good cached values in BadgerDB
// so a restarted client renders last-known data before its first fetch
// completes.
type SnapshotRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewSnapshotRepository(db *badger.DB, log *slog.Logger) SnapshotRepository {
	return SnapshotRepository{db: db, log: log}
}

type diskMessage struct {
	ID             string    `json:"id"`
	Chat           int64     `json:"chat"`
	Sender         string    `json:"sender"`
	Content        string    `json:"content"`
	AttachmentURL  string    `json:"attachmentUrl,omitempty"`
	AttachmentKind string    `json:"attachmentKind,omitempty"`
	Private        bool      `json:"private"`
	CreatedAt      time.Time `json:"createdAt"`
}

type diskNotification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// StoreMessages replaces the snapshot of one chat in a single
// transaction. The key is formatted as "msg:{chat_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     share the same nanosecond.
func (r SnapshotRepository) StoreMessages(chat domain.ChatID, messages []domain.Message) error {
	prefix := []byte(fmt.Sprintf("msg:%d:", chat))
	return r.db.Update(func(txn *badger.Txn) error {
		if err := deletePrefix(txn, prefix); err != nil {
			return err
		}
		for _, m := range messages {
			key := fmt.Sprintf("msg:%d:%019d:%s", chat, m.CreatedAt.UnixNano(), m.ID)
			bytes, err := json.Marshal(fromMessage(m))
			if err != nil {
				return err
			}
			if err = txn.Set([]byte(key), bytes); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetMessages retrieves the snapshot of one chat using a prefix scan.
// Thanks to the padded timestamp in the key, messages come back
// naturally sorted by time.
func (r SnapshotRepository) GetMessages(chat domain.ChatID) ([]domain.Message, error) {
	var messages []domain.Message
	prefix := []byte(fmt.Sprintf("msg:%d:", chat))

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var dm diskMessage
				if err := json.Unmarshal(value, &dm); err != nil {
					return err
				}
				m, err := toMessage(dm)
				if err != nil {
					return err
				}
				messages = append(messages, m)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return messages, err
}

// StoreNotifications replaces the notification snapshot.
func (r SnapshotRepository) StoreNotifications(notifications []domain.Notification) error {
	prefix := []byte("notif:")
	return r.db.Update(func(txn *badger.Txn) error {
		if err := deletePrefix(txn, prefix); err != nil {
			return err
		}
		for _, n := range notifications {
			key := fmt.Sprintf("notif:%019d:%s", n.CreatedAt.UnixNano(), n.ID)
			bytes, err := json.Marshal(diskNotification{
				ID:        n.ID,
				Type:      string(n.Type),
				Title:     n.Title,
				Content:   n.Content,
				Read:      n.Read,
				CreatedAt: n.CreatedAt.UTC(),
			})
			if err != nil {
				return err
			}
			if err = txn.Set([]byte(key), bytes); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r SnapshotRepository) GetNotifications() ([]domain.Notification, error) {
	var notifications []domain.Notification
	prefix := []byte("notif:")

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var dn diskNotification
				if err := json.Unmarshal(value, &dn); err != nil {
					return err
				}
				notifications = append(notifications, domain.Notification{
					ID:        dn.ID,
					Type:      domain.NotificationType(dn.Type),
					Title:     dn.Title,
					Content:   dn.Content,
					Read:      dn.Read,
					CreatedAt: dn.CreatedAt,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return notifications, err
}

// deletePrefix drops a stale snapshot before the replacement is
// written, inside the same transaction.
func deletePrefix(txn *badger.Txn, prefix []byte) error {
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func fromMessage(m domain.Message) diskMessage {
	dm := diskMessage{
		ID:        m.ID.String(),
		Chat:      int64(m.Chat),
		Sender:    m.SenderID,
		Content:   m.Content,
		Private:   m.Private,
		CreatedAt: m.CreatedAt.UTC(),
	}
	if m.Attachment != nil {
		dm.AttachmentURL = m.Attachment.URL
		dm.AttachmentKind = string(m.Attachment.Kind)
	}
	return dm
}

func toMessage(dm diskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, err
	}
	m := domain.Message{
		ID:        parsedID,
		Chat:      domain.ChatID(dm.Chat),
		SenderID:  dm.Sender,
		Content:   dm.Content,
		Private:   dm.Private,
		CreatedAt: dm.CreatedAt,
	}
	if dm.AttachmentURL != "" {
		m.Attachment = &domain.Attachment{
			URL:  dm.AttachmentURL,
			Kind: domain.MediaKind(dm.AttachmentKind),
		}
	}
	return m, nil
}
