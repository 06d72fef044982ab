// Package runtime composes the polling and push channels per chat view
// and decides which one is authoritative. It orchestrates the sync
// core without containing domain rules.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"booking-sync/cache"
	"booking-sync/contract"
	"booking-sync/domain"
	"booking-sync/errors"
	"booking-sync/projection"
	"booking-sync/push"
	"booking-sync/runtime/workers"
	"booking-sync/transport"

	"github.com/google/uuid"
)

// PushChannel is what a view needs from the push manager.
type PushChannel interface {
	Join(chat domain.ChatID) error
	Leave(chat domain.ChatID) error
	State() push.State
	OnStateChange(fn func(push.State)) func()
}

// ChatView is the synchronization coordinator for one chat. Its Run
// lifetime is the mounted lifetime of the view: mounting starts it,
// unmounting cancels its context.
type ChatView struct {
	log     *slog.Logger
	store   *cache.Store
	api     contract.API
	channel PushChannel
	chat    domain.ChatID
	poller  *workers.PollWorker
	closed  atomic.Bool

	timeline projection.Timeline
}

func NewChatView(
	log *slog.Logger,
	store *cache.Store,
	api contract.API,
	channel PushChannel,
	chat domain.ChatID,
	viewerIsStaff bool,
	pollInterval time.Duration,
) *ChatView {
	poller := workers.NewPollWorker(log, store, cache.MessagesKey(chat),
		func(ctx context.Context) (any, error) {
			return api.Messages(ctx, chat)
		}, pollInterval)

	return &ChatView{
		log:      log,
		store:    store,
		api:      api,
		channel:  channel,
		chat:     chat,
		poller:   poller,
		timeline: projection.Timeline{ViewerIsStaff: viewerIsStaff},
	}
}

// Run drives the view until unmount. On entry it joins the chat (when
// push is up) and fetches once immediately: a cache-cold read must not
// wait for the first poll tick or the first push event.
func (v *ChatView) Run(ctx context.Context) error {
	stateCh := make(chan push.State, 4)
	unsubscribe := v.channel.OnStateChange(func(s push.State) {
		select {
		case stateCh <- s:
		default:
		}
	})
	defer unsubscribe()

	chatWatch := v.store.Watch(cache.ChatKey(v.chat))
	defer v.store.Unwatch(cache.ChatKey(v.chat), chatWatch)

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		_ = v.poller.Run(ctx)
	}()

	v.applyMode(v.channel.State())
	v.refetchChat(ctx)
	// The poller owns the fetch path; an invalidation makes it fetch
	// right away instead of duplicating the request logic here.
	v.store.Invalidate(cache.MessagesKey(v.chat))

	for {
		select {
		case <-ctx.Done():
			_ = v.channel.Leave(v.chat)
			<-pollerDone
			v.log.Debug("View unmounted", "chat", v.chat)
			return nil
		case s := <-stateCh:
			v.applyMode(s)
		case <-chatWatch:
			v.refetchChat(ctx)
		}
	}
}

// applyMode implements mode exclusivity: while connected and joined,
// push is authoritative and interval polling stops; otherwise polling
// carries the view at the fallback interval.
func (v *ChatView) applyMode(s push.State) {
	if s == push.StateConnected {
		if err := v.channel.Join(v.chat); err != nil {
			v.log.Warn("Join failed, keeping polling fallback", "chat", v.chat, "err", err)
			v.poller.Resume()
			return
		}
		v.poller.Suspend()
		return
	}
	v.poller.Resume()
}

func (v *ChatView) refetchChat(ctx context.Context) {
	started := time.Now().UTC()
	chat, err := v.api.Chat(ctx, v.chat)
	if err != nil {
		if ctx.Err() == nil {
			v.log.Debug("Chat fetch failed, last good value stays", "chat", v.chat, "err", err)
		}
		return
	}
	v.store.Write(cache.ChatKey(v.chat), chat, started)
	if !chat.IsOpen {
		// Terminal: once observed closed, no further sends ever.
		v.closed.Store(true)
	}
}

// SendMessage is a confirmed write. On success the messages key is
// invalidated unconditionally, whatever the current mode: the sender
// must see their own message even if the push event for it races or is
// lost. If the push event does arrive too, the duplicate invalidation
// coalesces into the same re-fetch.
func (v *ChatView) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (uuid.UUID, error) {
	if v.closed.Load() {
		// Guard before any network call.
		return uuid.Nil, errors.ErrChatClosed
	}
	if err := cmd.Validate(); err != nil {
		return uuid.Nil, err
	}

	id, err := v.api.SendMessage(ctx, cmd)
	if err != nil {
		if se, ok := err.(*transport.StatusError); ok && se.Code == 409 {
			v.closed.Store(true)
			return uuid.Nil, errors.ErrChatClosed
		}
		// Cache untouched: no optimistic write means no rollback.
		return uuid.Nil, err
	}

	v.store.Invalidate(cache.MessagesKey(v.chat))
	return id, nil
}

// Messages returns the reconciled view of the chat: cached snapshot,
// ordered by creation time then identity, private messages filtered
// for non-staff viewers.
func (v *ChatView) Messages() []domain.Message {
	entry, ok := v.store.Read(cache.MessagesKey(v.chat))
	if !ok {
		return nil
	}
	messages, ok := entry.Value.([]domain.Message)
	if !ok {
		return nil
	}
	return v.timeline.Render(messages)
}

// Closed reports whether the terminal closed state has been observed.
func (v *ChatView) Closed() bool {
	return v.closed.Load()
}

// Err exposes the poller's surfaced error state for the UI.
func (v *ChatView) Err() error {
	return v.poller.Err()
}

// Coordinator tracks mounted chat views and shares the cache, API and
// push channel between them.
type Coordinator struct {
	mu            sync.Mutex
	log           *slog.Logger
	store         *cache.Store
	api           contract.API
	channel       PushChannel
	pollInterval  time.Duration
	viewerIsStaff bool
	views         map[domain.ChatID]*mounted
}

type mounted struct {
	view   *ChatView
	cancel context.CancelFunc
	done   chan struct{}
}

func NewCoordinator(
	log *slog.Logger,
	store *cache.Store,
	api contract.API,
	channel PushChannel,
	viewerIsStaff bool,
	pollInterval time.Duration,
) *Coordinator {
	return &Coordinator{
		log:           log,
		store:         store,
		api:           api,
		channel:       channel,
		pollInterval:  pollInterval,
		viewerIsStaff: viewerIsStaff,
		views:         make(map[domain.ChatID]*mounted),
	}
}

// Mount opens a chat view. Mounting an already-open chat returns the
// existing view.
func (c *Coordinator) Mount(ctx context.Context, chat domain.ChatID) *ChatView {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.views[chat]; ok {
		return m.view
	}

	view := NewChatView(c.log, c.store, c.api, c.channel, chat, c.viewerIsStaff, c.pollInterval)
	viewCtx, cancel := context.WithCancel(ctx)
	m := &mounted{view: view, cancel: cancel, done: make(chan struct{})}
	c.views[chat] = m

	go func() {
		defer close(m.done)
		_ = view.Run(viewCtx)
	}()
	return view
}

// Unmount closes a chat view: leaves the chat, stops its polling and
// cancels any in-flight fetch. Blocks until the view has fully stopped.
func (c *Coordinator) Unmount(chat domain.ChatID) {
	c.mu.Lock()
	m, ok := c.views[chat]
	if ok {
		delete(c.views, chat)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	m.cancel()
	<-m.done
}

// Close unmounts every open view.
func (c *Coordinator) Close() {
	c.mu.Lock()
	views := c.views
	c.views = make(map[domain.ChatID]*mounted)
	c.mu.Unlock()

	for _, m := range views {
		m.cancel()
		<-m.done
	}
}
