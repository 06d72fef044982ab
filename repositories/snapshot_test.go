package repositories

import (
	"log/slog"
	"testing"
	"time"

	"booking-sync/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSnapshot_Messages_Roundtrip_Sorted(t *testing.T) {
	req := require.New(t)
	repository := NewSnapshotRepository(openTestDB(t), slog.Default())
	chat := domain.ChatID(1)
	at := time.Now().UTC()

	messages := []domain.Message{
		{ID: uuid.New(), Chat: chat, SenderID: "Clara", Content: "third", CreatedAt: at.Add(2 * time.Minute)},
		{ID: uuid.New(), Chat: chat, SenderID: "Alice", Content: "first", CreatedAt: at},
		{ID: uuid.New(), Chat: chat, SenderID: "Bob", Content: "second", CreatedAt: at.Add(1 * time.Minute)},
	}
	req.NoError(repository.StoreMessages(chat, messages))

	fetched, err := repository.GetMessages(chat)
	req.NoError(err)
	req.Len(fetched, 3)
	// Padded timestamp keys come back chronologically
	req.Equal("first", fetched[0].Content)
	req.Equal("second", fetched[1].Content)
	req.Equal("third", fetched[2].Content)
}

func TestSnapshot_Messages_Replace_Old_Snapshot(t *testing.T) {
	req := require.New(t)
	repository := NewSnapshotRepository(openTestDB(t), slog.Default())
	chat := domain.ChatID(2)
	at := time.Now().UTC()

	old := []domain.Message{
		{ID: uuid.New(), Chat: chat, SenderID: "Alice", Content: "stale", CreatedAt: at},
	}
	req.NoError(repository.StoreMessages(chat, old))

	fresh := []domain.Message{
		{ID: uuid.New(), Chat: chat, SenderID: "Alice", Content: "kept", CreatedAt: at.Add(time.Minute)},
	}
	req.NoError(repository.StoreMessages(chat, fresh))

	fetched, err := repository.GetMessages(chat)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("kept", fetched[0].Content)
}

func TestSnapshot_Messages_Isolated_Per_Chat(t *testing.T) {
	req := require.New(t)
	repository := NewSnapshotRepository(openTestDB(t), slog.Default())
	at := time.Now().UTC()

	req.NoError(repository.StoreMessages(1, []domain.Message{
		{ID: uuid.New(), Chat: 1, SenderID: "Alice", Content: "one", CreatedAt: at},
	}))
	req.NoError(repository.StoreMessages(11, []domain.Message{
		{ID: uuid.New(), Chat: 11, SenderID: "Bob", Content: "eleven", CreatedAt: at},
	}))

	fetched, err := repository.GetMessages(1)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("one", fetched[0].Content)
}

func TestSnapshot_Message_Attachment_Survives(t *testing.T) {
	req := require.New(t)
	repository := NewSnapshotRepository(openTestDB(t), slog.Default())
	chat := domain.ChatID(3)

	messages := []domain.Message{{
		ID: uuid.New(), Chat: chat, SenderID: "Alice", Content: "see photo",
		Attachment: &domain.Attachment{URL: "https://cdn/img.png", Kind: domain.MediaImage},
		CreatedAt:  time.Now().UTC(),
	}}
	req.NoError(repository.StoreMessages(chat, messages))

	fetched, err := repository.GetMessages(chat)
	req.NoError(err)
	req.NotNil(fetched[0].Attachment)
	req.Equal(domain.MediaImage, fetched[0].Attachment.Kind)
}

func TestSnapshot_Notifications_Roundtrip(t *testing.T) {
	req := require.New(t)
	repository := NewSnapshotRepository(openTestDB(t), slog.Default())
	at := time.Now().UTC()

	notifications := []domain.Notification{
		{ID: uuid.NewString(), Type: domain.NotificationBooking, Title: "Booking confirmed", Read: true, CreatedAt: at},
		{ID: uuid.NewString(), Type: domain.NotificationMessage, Title: "New message", Read: false, CreatedAt: at.Add(time.Second)},
	}
	req.NoError(repository.StoreNotifications(notifications))

	fetched, err := repository.GetNotifications()
	req.NoError(err)
	req.Len(fetched, 2)
	req.Equal("Booking confirmed", fetched[0].Title)
	req.False(fetched[1].Read)
}
