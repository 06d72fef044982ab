package workers

import (
	"context"
	"log/slog"
	"time"

	"booking-sync/cache"
	"booking-sync/contract"
	"booking-sync/domain"
)

var _ contract.Worker = (*SnapshotWorker)(nil)

// Snapshotter persists last-good values so a restarted client can
// render something before the first fetch completes.
type Snapshotter interface {
	StoreMessages(chat domain.ChatID, messages []domain.Message) error
	StoreNotifications(notifications []domain.Notification) error
}

// SnapshotWorker periodically copies cached message lists and the
// notification list to disk. Best effort: a failed snapshot only
// costs offline freshness.
type SnapshotWorker struct {
	log      *slog.Logger
	store    *cache.Store
	repo     Snapshotter
	chats    []domain.ChatID
	interval time.Duration
}

func NewSnapshotWorker(
	log *slog.Logger,
	store *cache.Store,
	repo Snapshotter,
	chats []domain.ChatID,
	interval time.Duration,
) *SnapshotWorker {
	return &SnapshotWorker{log: log, store: store, repo: repo, chats: chats, interval: interval}
}

func (w *SnapshotWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// One last snapshot on teardown so logout keeps the
			// freshest offline state.
			w.snapshot()
			return nil
		case <-ticker.C:
			w.snapshot()
		}
	}
}

func (w *SnapshotWorker) snapshot() {
	for _, chat := range w.chats {
		entry, ok := w.store.Read(cache.MessagesKey(chat))
		if !ok {
			continue
		}
		messages, ok := entry.Value.([]domain.Message)
		if !ok {
			continue
		}
		if err := w.repo.StoreMessages(chat, messages); err != nil {
			w.log.Warn("Message snapshot failed", "chat", chat, "err", err)
		}
	}

	entry, ok := w.store.Read(cache.NotificationsKey())
	if !ok {
		return
	}
	notifications, ok := entry.Value.([]domain.Notification)
	if !ok {
		return
	}
	if err := w.repo.StoreNotifications(notifications); err != nil {
		w.log.Warn("Notification snapshot failed", "err", err)
	}
}
