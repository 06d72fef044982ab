// Package notify derives unread counts and read state from the
// notification resource. It shares the cache/invalidation substrate
// with the chat views but is otherwise independent of chat sync.
package notify

import (
	"context"
	"log/slog"
	"time"

	"booking-sync/cache"
	"booking-sync/contract"
	"booking-sync/domain"
	"booking-sync/projection"
	"booking-sync/runtime/workers"
)

var _ contract.Worker = (*Aggregator)(nil)

// Aggregator keeps the notification list fresh and answers unread
// queries. The list is re-fetched unconditionally on a fixed interval,
// independent of the push channel: notifications originate from
// several unrelated producers (bookings, tasks, approvals) and not all
// of them are wired to push. That asymmetry is deliberate and
// documented, not an oversight.
type Aggregator struct {
	log    *slog.Logger
	store  *cache.Store
	api    contract.API
	poller *workers.PollWorker
}

func NewAggregator(
	log *slog.Logger,
	store *cache.Store,
	api contract.API,
	pollInterval time.Duration,
) *Aggregator {
	poller := workers.NewPollWorker(log, store, cache.NotificationsKey(),
		func(ctx context.Context) (any, error) {
			return api.Notifications(ctx)
		}, pollInterval)
	return &Aggregator{log: log, store: store, api: api, poller: poller}
}

func (a *Aggregator) Run(ctx context.Context) error {
	// First read must not wait a full interval.
	a.store.Invalidate(cache.NotificationsKey())
	return a.poller.Run(ctx)
}

// Notifications returns the cached list, possibly stale while a
// re-fetch is pending.
func (a *Aggregator) Notifications() []domain.Notification {
	entry, ok := a.store.Read(cache.NotificationsKey())
	if !ok {
		return nil
	}
	notifications, ok := entry.Value.([]domain.Notification)
	if !ok {
		return nil
	}
	return notifications
}

// UnreadCount is recomputed from the cached list on every call, never
// maintained as separate mutable state.
func (a *Aggregator) UnreadCount() int {
	return projection.Unread(a.Notifications())
}

// MarkRead marks one notification read. Until the invalidated re-fetch
// completes, the UI may show a stale count; that window is bounded by
// one round trip.
func (a *Aggregator) MarkRead(ctx context.Context, id string) error {
	cmd := domain.MarkReadCommand{NotificationID: id}
	if err := cmd.Validate(); err != nil {
		return err
	}
	if err := a.api.MarkRead(ctx, id); err != nil {
		return err
	}
	a.store.Invalidate(cache.NotificationsKey())
	return nil
}

// MarkAllRead marks every notification read.
func (a *Aggregator) MarkAllRead(ctx context.Context) error {
	if err := a.api.MarkAllRead(ctx); err != nil {
		return err
	}
	a.store.Invalidate(cache.NotificationsKey())
	return nil
}

// Err exposes the poller's surfaced error state.
func (a *Aggregator) Err() error {
	return a.poller.Err()
}
