package e2e

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"booking-sync/domain/event"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Backend is an in-process stand-in for the booking platform: the REST
// surface the client polls plus the websocket it subscribes to. State
// is mutated from tests to simulate other participants.
type Backend struct {
	app   *fiber.App
	token string
	addr  string

	mu            sync.Mutex
	chats         map[int64]*backendChat
	notifications []wireNotification
	conns         map[*websocket.Conn]map[int64]bool
}

type backendChat struct {
	open     bool
	messages []wireMessage
}

type wireMessage struct {
	ID        string    `json:"id"`
	ChatID    int64     `json:"chatId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	IsPrivate bool      `json:"isPrivate"`
	CreatedAt time.Time `json:"createdAt"`
}

type wireNotification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewBackend(token string) *Backend {
	b := &Backend{
		token: token,
		chats: make(map[int64]*backendChat),
		conns: make(map[*websocket.Conn]map[int64]bool),
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Use(func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) != "Bearer "+token {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "bad token"})
		}
		return c.Next()
	})

	app.Get("/api/chats/:id", b.getChat)
	app.Get("/api/chats/:id/messages", b.getMessages)
	app.Post("/api/chats/:id/messages", b.postMessage)
	app.Get("/api/notifications", b.getNotifications)
	app.Post("/api/notifications/read-all", b.readAll)
	app.Post("/api/notifications/:id/read", b.readOne)
	app.Get("/ws", websocket.New(b.serveWS))

	b.app = app
	return b
}

// Start binds an ephemeral port and serves in the background.
func (b *Backend) Start() error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	b.addr = ln.Addr().String()
	go func() { _ = b.app.Listener(ln) }()
	return nil
}

func (b *Backend) Shutdown() {
	_ = b.app.Shutdown()
}

func (b *Backend) URL() string {
	return "http://" + b.addr
}

func (b *Backend) PushURL() string {
	return "ws://" + b.addr + "/ws"
}

// SeedChat registers a chat before the client mounts it.
func (b *Backend) SeedChat(id int64, open bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chats[id] = &backendChat{open: open}
}

// PushMessage simulates another participant writing into the chat:
// the message lands in REST state and a live event goes out to every
// subscribed connection.
func (b *Backend) PushMessage(chat int64, sender, content string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg := wireMessage{
		ID:        uuid.NewString(),
		ChatID:    chat,
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if c, ok := b.chats[chat]; ok {
		c.messages = append(c.messages, msg)
	}
	b.broadcast(chat, event.NewMsg, msg)
}

// CloseChat flips the chat to closed and tells subscribers.
func (b *Backend) CloseChat(chat int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.chats[chat]; ok {
		c.open = false
	}
	b.broadcast(chat, event.ChatClose, struct {
		ChatID int64 `json:"chatId"`
	}{ChatID: chat})
}

// SeedNotification appends one notification, unread by default.
func (b *Backend) SeedNotification(title string, read bool) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := wireNotification{
		ID:        uuid.NewString(),
		Type:      "booking",
		Title:     title,
		Read:      read,
		CreatedAt: time.Now().UTC(),
	}
	b.notifications = append(b.notifications, n)
	return n.ID
}

// MessageCount reports how many messages a chat holds server-side.
func (b *Backend) MessageCount(chat int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.chats[chat]; ok {
		return len(c.messages)
	}
	return 0
}

// broadcast must be called with b.mu held.
func (b *Backend) broadcast(chat int64, name string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	frame := event.Frame{Event: name, Payload: raw}
	for conn, joined := range b.conns {
		if joined[chat] {
			_ = conn.WriteJSON(frame)
		}
	}
}

func (b *Backend) getChat(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	chat, ok := b.chats[int64(id)]
	if !ok {
		return c.SendStatus(fiber.StatusNotFound)
	}
	return c.JSON(fiber.Map{"id": id, "isOpen": chat.open})
}

func (b *Backend) getMessages(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	chat, ok := b.chats[int64(id)]
	if !ok {
		return c.SendStatus(fiber.StatusNotFound)
	}
	if chat.messages == nil {
		return c.JSON([]wireMessage{})
	}
	return c.JSON(chat.messages)
}

func (b *Backend) postMessage(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	var in struct {
		Sender    string `json:"sender"`
		Content   string `json:"content"`
		IsPrivate bool   `json:"isPrivate"`
	}
	if err := c.BodyParser(&in); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	chat, ok := b.chats[int64(id)]
	if !ok {
		return c.SendStatus(fiber.StatusNotFound)
	}
	if !chat.open {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "chat closed"})
	}

	msg := wireMessage{
		ID:        uuid.NewString(),
		ChatID:    int64(id),
		Sender:    in.Sender,
		Content:   in.Content,
		IsPrivate: in.IsPrivate,
		CreatedAt: time.Now().UTC(),
	}
	chat.messages = append(chat.messages, msg)
	b.broadcast(int64(id), event.NewMsg, msg)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": msg.ID})
}

func (b *Backend) getNotifications(c *fiber.Ctx) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.notifications == nil {
		return c.JSON([]wireNotification{})
	}
	return c.JSON(b.notifications)
}

func (b *Backend) readOne(c *fiber.Ctx) error {
	id := c.Params("id")

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.notifications {
		if b.notifications[i].ID == id {
			b.notifications[i].Read = true
			return c.SendStatus(fiber.StatusOK)
		}
	}
	return c.SendStatus(fiber.StatusNotFound)
}

func (b *Backend) readAll(c *fiber.Ctx) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.notifications {
		b.notifications[i].Read = true
	}
	return c.SendStatus(fiber.StatusOK)
}

func (b *Backend) serveWS(conn *websocket.Conn) {
	b.mu.Lock()
	b.conns[conn] = make(map[int64]bool)
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.conns, conn)
		b.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		var frame event.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		var scope struct {
			ChatID int64 `json:"chatId"`
		}
		if err := json.Unmarshal(frame.Payload, &scope); err != nil {
			continue
		}

		b.mu.Lock()
		switch frame.Event {
		case event.JoinChat:
			b.conns[conn][scope.ChatID] = true
		case event.LeaveChat:
			delete(b.conns[conn], scope.ChatID)
		}
		b.mu.Unlock()
	}
}

// DropConnections kills every live websocket so reconnection paths can
// be exercised.
func (b *Backend) DropConnections() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.conns {
		_ = conn.Close()
	}
}
