// Package push owns the single live connection per authenticated
// session: room membership, inbound event dispatch, reconnects. Its
// only output towards the rest of the system is cache invalidation.
package push

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"booking-sync/auth"
	"booking-sync/cache"
	"booking-sync/contract"
	"booking-sync/domain"
	"booking-sync/domain/event"
	"booking-sync/errors"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Notice is a one-shot user-facing message derived from a push event.
type Notice struct {
	Chat domain.ChatID
	Text string
}

type joinPayload struct {
	Chat int64 `json:"chatId"`
}

// Manager runs the connection state machine under the supervisor.
// Subscriptions are the shared mutable state between all open chat
// views; join and leave being commutative and idempotent is the only
// coordination discipline they need.
type Manager struct {
	mu               sync.Mutex
	log              *slog.Logger
	dialer           contract.PushDialer
	session          auth.Session
	store            *cache.Store
	handshakeTimeout time.Duration
	backoff          *Backoff

	state        atomic.Int32
	conn         contract.PushConn
	joined       map[domain.ChatID]struct{}
	listeners    map[int]func(State)
	nextListener int
	notices      chan Notice
	telemetry    Telemetry
}

// Telemetry receives connection and event figures. Optional; a nil
// telemetry is never called.
type Telemetry interface {
	AddEvent(event string, chat int64)
	IncrReconnect()
}

// SetTelemetry must be called before Run.
func (m *Manager) SetTelemetry(t Telemetry) {
	m.telemetry = t
}

func NewManager(
	log *slog.Logger,
	dialer contract.PushDialer,
	session auth.Session,
	store *cache.Store,
	handshakeTimeout time.Duration,
	backoff *Backoff,
) *Manager {
	return &Manager{
		log:              log,
		dialer:           dialer,
		session:          session,
		store:            store,
		handshakeTimeout: handshakeTimeout,
		backoff:          backoff,
		joined:           make(map[domain.ChatID]struct{}),
		listeners:        make(map[int]func(State)),
		notices:          make(chan Notice, 8),
	}
}

func (m *Manager) State() State {
	return State(m.state.Load())
}

// Notices delivers one-shot user-facing notices (e.g. chat closed).
func (m *Manager) Notices() <-chan Notice {
	return m.notices
}

// OnStateChange registers a listener and returns its unsubscribe
// function. The manager does not replay past transitions; callers read
// State() for the current one.
func (m *Manager) OnStateChange(fn func(State)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Run keeps one connection alive until the session context ends.
// Handshake failures degrade to the polling fallback: the manager
// stays Disconnected and retries with bounded jittered backoff.
func (m *Manager) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			m.setState(StateDisconnected)
			return nil
		}
		if !m.session.Usable() {
			// Nothing to reconnect with; polling carries the views.
			m.log.Warn("Session credential expired, push channel stays down")
			m.setState(StateDisconnected)
			return nil
		}

		m.setState(StateConnecting)
		dialCtx, cancel := context.WithTimeout(ctx, m.handshakeTimeout)
		conn, err := m.dialer.Dial(dialCtx, m.session.Token)
		cancel()
		if err != nil {
			m.setState(StateDisconnected)
			if m.telemetry != nil {
				m.telemetry.IncrReconnect()
			}
			wait := m.backoff.Next()
			m.log.Warn("Push handshake failed", "err", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}

		m.backoff.Reset()
		m.mu.Lock()
		m.conn = conn
		m.mu.Unlock()
		m.setState(StateConnected)
		m.log.Info("Push channel connected")

		m.readLoop(ctx, conn)

		// Transport loss or teardown: all subscriptions for this
		// connection are implicitly dropped. Re-subscription is the
		// caller's responsibility on the next Connected transition.
		m.mu.Lock()
		m.conn = nil
		m.joined = make(map[domain.ChatID]struct{})
		m.mu.Unlock()
		_ = conn.Close()
		m.setState(StateDisconnected)

		if ctx.Err() != nil {
			m.log.Info("Push channel torn down")
			return nil
		}
		if m.telemetry != nil {
			m.telemetry.IncrReconnect()
		}
		m.log.Warn("Push transport lost, reconnecting")
	}
}

func (m *Manager) readLoop(ctx context.Context, conn contract.PushConn) {
	// Next blocks on the transport; closing the connection on context
	// cancellation is what unblocks it.
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()

	for {
		frame, err := conn.Next()
		if err != nil {
			return
		}
		m.dispatch(frame)
	}
}

// Join subscribes the live connection to a chat. Duplicate joins are
// no-ops. Callers on a disconnected manager get ErrNotConnected and
// should rely on the polling fallback instead.
func (m *Manager) Join(chat domain.ChatID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return errors.ErrNotConnected
	}
	if _, ok := m.joined[chat]; ok {
		return nil
	}
	if err := m.conn.Emit(event.JoinChat, joinPayload{Chat: int64(chat)}); err != nil {
		return err
	}
	m.joined[chat] = struct{}{}
	return nil
}

// Leave unsubscribes from a chat. Leaving a chat that was never joined
// is a no-op, as is leaving while disconnected.
func (m *Manager) Leave(chat domain.ChatID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	if _, ok := m.joined[chat]; !ok {
		return nil
	}
	delete(m.joined, chat)
	return m.conn.Emit(event.LeaveChat, joinPayload{Chat: int64(chat)})
}

// Joined reports current membership, mainly for coordinators and tests.
func (m *Manager) Joined(chat domain.ChatID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.joined[chat]
	return ok
}

func (m *Manager) dispatch(frame event.Frame) {
	evt, err := event.Decode(frame)
	if err != nil {
		m.log.Error("Dropping malformed push frame", "event", frame.Event)
		return
	}
	if evt == nil {
		m.log.Debug("Ignoring unknown push event", "event", frame.Event)
		return
	}

	// Defense against stale subscriptions: events for chats this
	// connection has not joined must be ignored, silently.
	if !m.Joined(evt.ChatID()) {
		m.log.Debug("Ignoring event for unjoined chat", "chat", evt.ChatID())
		return
	}

	if m.telemetry != nil {
		m.telemetry.AddEvent(frame.Event, int64(evt.ChatID()))
	}

	switch e := evt.(type) {
	case event.NewMessage:
		m.store.Invalidate(cache.MessagesKey(e.ChatID()))
	case event.ChatClosed:
		m.store.Invalidate(cache.ChatKey(e.ChatID()))
		select {
		case m.notices <- Notice{Chat: e.ChatID(), Text: "This conversation has been closed."}:
		default:
			m.log.Debug("Notice buffer full, dropping chat closed notice", "chat", e.ChatID())
		}
	}
}

func (m *Manager) setState(s State) {
	if State(m.state.Swap(int32(s))) == s {
		return
	}
	m.mu.Lock()
	listeners := make([]func(State), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}
