package push

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"booking-sync/auth"
	"booking-sync/cache"
	"booking-sync/contract"
	"booking-sync/domain"
	"booking-sync/domain/event"
	"booking-sync/errors"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu      sync.Mutex
	frames  chan event.Frame
	emitted []string
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan event.Frame, 8)}
}

func (c *fakeConn) Emit(name string, _ any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitted = append(c.emitted, name)
	return nil
}

func (c *fakeConn) Next() (event.Frame, error) {
	frame, ok := <-c.frames
	if !ok {
		return event.Frame{}, io.EOF
	}
	return frame, nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.frames) })
	return nil
}

func (c *fakeConn) push(t *testing.T, name string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	c.frames <- event.Frame{Event: name, Payload: raw}
}

func (c *fakeConn) emittedEvents() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.emitted...)
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []contract.PushConn
	errs  []error
	dials int
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (contract.PushConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		return nil, err
	}
	if len(d.conns) == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func testSession(t *testing.T, d time.Duration) auth.Session {
	t.Helper()
	token, err := auth.GenerateToken("user-1", false, []byte("secret"), d)
	require.NoError(t, err)
	return auth.Session{Token: token}
}

func newTestManager(t *testing.T, dialer contract.PushDialer, store *cache.Store) *Manager {
	t.Helper()
	return NewManager(
		slog.Default(), dialer, testSession(t, time.Hour), store,
		100*time.Millisecond, NewBackoff(time.Millisecond, 5*time.Millisecond),
	)
}

func awaitState(t *testing.T, m *Manager, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return m.State() == want },
		time.Second, 2*time.Millisecond)
}

func TestManager_Connect_Join_And_Invalidate(t *testing.T) {
	req := require.New(t)
	store := cache.NewStore(slog.Default())
	conn := newFakeConn()
	m := newTestManager(t, &fakeDialer{conns: []contract.PushConn{conn}}, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()
	awaitState(t, m, StateConnected)

	chat := domain.ChatID(5)
	watch := store.Watch(cache.MessagesKey(chat))

	// When the view joins twice (idempotent)
	req.NoError(m.Join(chat))
	req.NoError(m.Join(chat))
	req.Equal([]string{event.JoinChat}, conn.emittedEvents())

	// And a new_message event arrives for the joined chat
	conn.push(t, event.NewMsg, event.NewMessage{Chat: int64(chat)})

	// Then the messages key is invalidated exactly once per event
	select {
	case <-watch:
	case <-time.After(time.Second):
		req.Fail("messages key was never invalidated")
	}
}

func TestManager_Ignores_Events_For_Unjoined_Chats(t *testing.T) {
	req := require.New(t)
	store := cache.NewStore(slog.Default())
	conn := newFakeConn()
	m := newTestManager(t, &fakeDialer{conns: []contract.PushConn{conn}}, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()
	awaitState(t, m, StateConnected)

	req.NoError(m.Join(domain.ChatID(1)))
	watchJoined := store.Watch(cache.MessagesKey(1))
	watchUnjoined := store.Watch(cache.MessagesKey(2))

	// When an event arrives for a chat this connection never joined
	conn.push(t, event.NewMsg, event.NewMessage{Chat: 2})
	// And one for the joined chat right behind it
	conn.push(t, event.NewMsg, event.NewMessage{Chat: 1})

	// Then only the joined chat sees an invalidation
	select {
	case <-watchJoined:
	case <-time.After(time.Second):
		req.Fail("joined chat was never invalidated")
	}
	req.Empty(watchUnjoined)
}

func TestManager_ChatClosed_Invalidates_And_Notifies_Once(t *testing.T) {
	req := require.New(t)
	store := cache.NewStore(slog.Default())
	conn := newFakeConn()
	m := newTestManager(t, &fakeDialer{conns: []contract.PushConn{conn}}, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()
	awaitState(t, m, StateConnected)

	chat := domain.ChatID(3)
	req.NoError(m.Join(chat))
	watch := store.Watch(cache.ChatKey(chat))

	conn.push(t, event.ChatClose, event.ChatClosed{Chat: int64(chat)})

	select {
	case notice := <-m.Notices():
		req.Equal(chat, notice.Chat)
	case <-time.After(time.Second):
		req.Fail("no notice delivered")
	}
	req.Len(watch, 1)
}

func TestManager_Transport_Loss_Drops_Subscriptions(t *testing.T) {
	req := require.New(t)
	store := cache.NewStore(slog.Default())
	first := newFakeConn()
	second := newFakeConn()
	dialer := &fakeDialer{conns: []contract.PushConn{first, second}}
	m := newTestManager(t, dialer, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()
	awaitState(t, m, StateConnected)

	chat := domain.ChatID(9)
	req.NoError(m.Join(chat))
	req.True(m.Joined(chat))

	// When the transport drops
	_ = first.Close()

	// Then the manager reconnects and membership is NOT replayed
	req.Eventually(func() bool { return dialer.dialCount() == 2 },
		time.Second, 2*time.Millisecond)
	awaitState(t, m, StateConnected)
	req.False(m.Joined(chat))

	// Re-joining is the caller's responsibility on reconnect
	req.NoError(m.Join(chat))
	req.Equal([]string{event.JoinChat}, second.emittedEvents())
}

func TestManager_Handshake_Failure_Retries_With_Backoff(t *testing.T) {
	req := require.New(t)
	store := cache.NewStore(slog.Default())
	conn := newFakeConn()
	dialer := &fakeDialer{
		errs:  []error{io.ErrUnexpectedEOF, io.ErrUnexpectedEOF},
		conns: []contract.PushConn{conn},
	}
	m := newTestManager(t, dialer, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	// Then after two failed handshakes the third attempt connects
	awaitState(t, m, StateConnected)
	req.Equal(3, dialer.dialCount())
}

func TestManager_Join_While_Disconnected(t *testing.T) {
	req := require.New(t)
	store := cache.NewStore(slog.Default())
	m := newTestManager(t, &fakeDialer{}, store)

	req.ErrorIs(m.Join(domain.ChatID(1)), errors.ErrNotConnected)
	// Leave while disconnected is a silent no-op
	req.NoError(m.Leave(domain.ChatID(1)))
}

func TestManager_Expired_Session_Stays_Down(t *testing.T) {
	req := require.New(t)
	store := cache.NewStore(slog.Default())
	dialer := &fakeDialer{}
	m := NewManager(
		slog.Default(), dialer, testSession(t, -time.Minute), store,
		100*time.Millisecond, NewBackoff(time.Millisecond, 5*time.Millisecond),
	)

	err := m.Run(context.Background())

	req.NoError(err)
	req.Equal(StateDisconnected, m.State())
	req.Zero(dialer.dialCount())
}

func TestManager_Teardown_On_Context_Cancel(t *testing.T) {
	req := require.New(t)
	store := cache.NewStore(slog.Default())
	conn := newFakeConn()
	m := newTestManager(t, &fakeDialer{conns: []contract.PushConn{conn}}, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = m.Run(ctx)
		close(done)
	}()
	awaitState(t, m, StateConnected)

	// When the session ends (logout)
	cancel()

	// Then teardown is explicit and terminal
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("manager did not stop on teardown")
	}
	req.Equal(StateDisconnected, m.State())
}
