package runtime

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"booking-sync/cache"
	"booking-sync/domain"
	"booking-sync/errors"
	"booking-sync/push"
	"booking-sync/transport"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu        sync.Mutex
	state     push.State
	joins     int
	leaves    int
	listeners []func(push.State)
}

func (c *fakeChannel) Join(_ domain.ChatID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != push.StateConnected {
		return errors.ErrNotConnected
	}
	c.joins++
	return nil
}

func (c *fakeChannel) Leave(_ domain.ChatID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaves++
	return nil
}

func (c *fakeChannel) State() push.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeChannel) OnStateChange(fn func(push.State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
	return func() {}
}

func (c *fakeChannel) setState(s push.State) {
	c.mu.Lock()
	c.state = s
	listeners := append(([]func(push.State))(nil), c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}

type fakeAPI struct {
	mu            sync.Mutex
	chat          domain.Chat
	messages      []domain.Message
	messagesCalls int
	sendErr       error
	sendCalls     int
}

func (a *fakeAPI) Chat(_ context.Context, _ domain.ChatID) (domain.Chat, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.chat, nil
}

func (a *fakeAPI) Messages(_ context.Context, _ domain.ChatID) ([]domain.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messagesCalls++
	return a.messages, nil
}

func (a *fakeAPI) SendMessage(_ context.Context, _ domain.SendMessageCommand) (uuid.UUID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sendCalls++
	if a.sendErr != nil {
		return uuid.Nil, a.sendErr
	}
	return uuid.New(), nil
}

func (a *fakeAPI) Notifications(_ context.Context) ([]domain.Notification, error) {
	return nil, nil
}
func (a *fakeAPI) MarkRead(_ context.Context, _ string) error { return nil }
func (a *fakeAPI) MarkAllRead(_ context.Context) error        { return nil }

func (a *fakeAPI) fetchCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.messagesCalls
}

func (a *fakeAPI) sendCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sendCalls
}

func openChat(messages ...domain.Message) *fakeAPI {
	return &fakeAPI{chat: domain.Chat{ID: 1, IsOpen: true}, messages: messages}
}

func TestChatView_Mount_Fetches_Immediately(t *testing.T) {
	req := require.New(t)
	store := cache.NewStore(slog.Default())
	msg := domain.Message{ID: uuid.New(), Chat: 1, SenderID: "Alice", Content: "hello", CreatedAt: time.Now().UTC()}
	api := openChat(msg)
	channel := &fakeChannel{}
	coordinator := NewCoordinator(slog.Default(), store, api, channel, false, time.Hour)
	defer coordinator.Close()

	// Poll interval is one hour: only the mount-time fetch can populate
	// the cache this fast
	view := coordinator.Mount(context.Background(), 1)

	req.Eventually(func() bool { return len(view.Messages()) == 1 },
		time.Second, 2*time.Millisecond)
	req.Equal("hello", view.Messages()[0].Content)
}

func TestChatView_Mode_Exclusivity(t *testing.T) {
	req := require.New(t)
	store := cache.NewStore(slog.Default())
	api := openChat()
	channel := &fakeChannel{state: push.StateConnected}
	coordinator := NewCoordinator(slog.Default(), store, api, channel, false, 20*time.Millisecond)
	defer coordinator.Close()

	coordinator.Mount(context.Background(), 1)

	// While connected and joined, only the mount-time fetch happens
	req.Eventually(func() bool { return api.fetchCount() == 1 },
		time.Second, 2*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	req.Equal(1, api.fetchCount())
	channel.mu.Lock()
	joins := channel.joins
	channel.mu.Unlock()
	req.Equal(1, joins)

	// Immediately upon disconnect, polling resumes within one interval
	channel.setState(push.StateDisconnected)
	req.Eventually(func() bool { return api.fetchCount() > 1 },
		time.Second, 2*time.Millisecond)
}

func TestChatView_Send_Invalidates_Messages(t *testing.T) {
	req := require.New(t)
	store := cache.NewStore(slog.Default())
	api := openChat()
	channel := &fakeChannel{}
	coordinator := NewCoordinator(slog.Default(), store, api, channel, false, time.Hour)
	defer coordinator.Close()

	view := coordinator.Mount(context.Background(), 1)
	req.Eventually(func() bool { return api.fetchCount() == 1 },
		time.Second, 2*time.Millisecond)

	_, err := view.SendMessage(context.Background(), domain.SendMessageCommand{
		Chat: 1, SenderID: "me", Content: "hi",
	})

	// The success handler invalidates regardless of push/poll mode, so
	// the sender sees their own message even without a push event
	req.NoError(err)
	req.Eventually(func() bool { return api.fetchCount() == 2 },
		time.Second, 2*time.Millisecond)
}

func TestChatView_Closed_Chat_Guard(t *testing.T) {
	req := require.New(t)
	store := cache.NewStore(slog.Default())
	api := openChat()
	api.chat = domain.Chat{ID: 1, IsOpen: false}
	channel := &fakeChannel{}
	coordinator := NewCoordinator(slog.Default(), store, api, channel, false, time.Hour)
	defer coordinator.Close()

	view := coordinator.Mount(context.Background(), 1)
	req.Eventually(func() bool { return view.Closed() }, time.Second, 2*time.Millisecond)

	// Once isOpen=false is observed, a send is rejected before any
	// network call is attempted
	_, err := view.SendMessage(context.Background(), domain.SendMessageCommand{
		Chat: 1, SenderID: "me", Content: "too late",
	})
	req.ErrorIs(err, errors.ErrChatClosed)
	req.Zero(api.sendCount())
}

func TestChatView_Server_Side_Closed_Rejection(t *testing.T) {
	req := require.New(t)
	store := cache.NewStore(slog.Default())
	api := openChat()
	api.sendErr = &transport.StatusError{Code: 409, Body: "chat closed"}
	channel := &fakeChannel{}
	coordinator := NewCoordinator(slog.Default(), store, api, channel, false, time.Hour)
	defer coordinator.Close()

	view := coordinator.Mount(context.Background(), 1)

	_, err := view.SendMessage(context.Background(), domain.SendMessageCommand{
		Chat: 1, SenderID: "me", Content: "hi",
	})
	req.ErrorIs(err, errors.ErrChatClosed)
	req.Equal(1, api.sendCount())

	// The rejection observed the closed state; no further attempt
	// reaches the network
	_, err = view.SendMessage(context.Background(), domain.SendMessageCommand{
		Chat: 1, SenderID: "me", Content: "again",
	})
	req.ErrorIs(err, errors.ErrChatClosed)
	req.Equal(1, api.sendCount())
}

func TestChatView_Validation_Happens_Before_Network(t *testing.T) {
	req := require.New(t)
	store := cache.NewStore(slog.Default())
	api := openChat()
	channel := &fakeChannel{}
	coordinator := NewCoordinator(slog.Default(), store, api, channel, false, time.Hour)
	defer coordinator.Close()

	view := coordinator.Mount(context.Background(), 1)

	_, err := view.SendMessage(context.Background(), domain.SendMessageCommand{
		Chat: 1, SenderID: "me", Content: "",
	})
	req.Error(err)
	req.Zero(api.sendCount())
}

func TestCoordinator_Unmount_Stops_Fetching_And_Leaves(t *testing.T) {
	req := require.New(t)
	store := cache.NewStore(slog.Default())
	api := openChat()
	channel := &fakeChannel{}
	coordinator := NewCoordinator(slog.Default(), store, api, channel, false, 10*time.Millisecond)

	coordinator.Mount(context.Background(), 1)
	req.Eventually(func() bool { return api.fetchCount() > 0 },
		time.Second, 2*time.Millisecond)

	coordinator.Unmount(1)

	channel.mu.Lock()
	leaves := channel.leaves
	channel.mu.Unlock()
	req.Equal(1, leaves)

	// No fetch completes into the store after unmount
	settled := api.fetchCount()
	time.Sleep(60 * time.Millisecond)
	req.Equal(settled, api.fetchCount())
}

func TestCoordinator_Mount_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	store := cache.NewStore(slog.Default())
	api := openChat()
	channel := &fakeChannel{}
	coordinator := NewCoordinator(slog.Default(), store, api, channel, false, time.Hour)
	defer coordinator.Close()

	first := coordinator.Mount(context.Background(), 1)
	second := coordinator.Mount(context.Background(), 1)
	req.Same(first, second)
}
