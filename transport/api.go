package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"booking-sync/domain"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// doer is what API needs from Client; narrowed for testability.
type doer interface {
	FetchResource(ctx context.Context, path string) ([]byte, error)
	SubmitMutation(ctx context.Context, method, path string, body any) ([]byte, error)
}

// API is the typed surface over the raw HTTP primitives. It satisfies
// contract.API.
type API struct {
	c doer
}

func NewAPI(c doer) *API {
	return &API{c: c}
}

type chatDTO struct {
	ID     int64 `json:"id"`
	IsOpen bool  `json:"isOpen"`
}

type messageDTO struct {
	ID             string    `json:"id"`
	ChatID         int64     `json:"chatId"`
	Sender         string    `json:"sender"`
	Content        string    `json:"content"`
	AttachmentURL  string    `json:"attachmentUrl,omitempty"`
	AttachmentKind string    `json:"attachmentKind,omitempty"`
	IsPrivate      bool      `json:"isPrivate"`
	CreatedAt      time.Time `json:"createdAt"`
}

type notificationDTO struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

type sendMessageDTO struct {
	Sender         string `json:"sender"`
	Content        string `json:"content"`
	AttachmentURL  string `json:"attachmentUrl,omitempty"`
	AttachmentKind string `json:"attachmentKind,omitempty"`
	IsPrivate      bool   `json:"isPrivate"`
}

type createdDTO struct {
	ID string `json:"id"`
}

func (a *API) Chat(ctx context.Context, id domain.ChatID) (domain.Chat, error) {
	raw, err := a.c.FetchResource(ctx, fmt.Sprintf("/api/chats/%d", id))
	if err != nil {
		return domain.Chat{}, err
	}
	var dto chatDTO
	if err = json.Unmarshal(raw, &dto); err != nil {
		return domain.Chat{}, fmt.Errorf("decoding chat %d: %w", id, err)
	}
	return domain.Chat{ID: domain.ChatID(dto.ID), IsOpen: dto.IsOpen}, nil
}

func (a *API) Messages(ctx context.Context, id domain.ChatID) ([]domain.Message, error) {
	raw, err := a.c.FetchResource(ctx, fmt.Sprintf("/api/chats/%d/messages", id))
	if err != nil {
		return nil, err
	}
	var dtos []messageDTO
	if err = json.Unmarshal(raw, &dtos); err != nil {
		return nil, fmt.Errorf("decoding messages of chat %d: %w", id, err)
	}
	return lo.Map(dtos, func(dto messageDTO, _ int) domain.Message {
		return toMessage(dto)
	}), nil
}

// SendMessage submits a confirmed write: no optimistic cache update
// happens anywhere, callers invalidate on success instead. When the
// command carries a local attachment, its media kind is sniffed here;
// the actual upload belongs to the storage collaborator.
func (a *API) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (uuid.UUID, error) {
	dto := sendMessageDTO{
		Sender:    cmd.SenderID,
		Content:   cmd.Content,
		IsPrivate: cmd.Private,
	}
	if cmd.AttachmentPath != "" {
		kind, err := domain.DetectMediaKind(cmd.AttachmentPath)
		if err != nil {
			return uuid.Nil, err
		}
		dto.AttachmentURL = cmd.AttachmentPath
		dto.AttachmentKind = string(kind)
	}

	raw, err := a.c.SubmitMutation(ctx, "POST",
		fmt.Sprintf("/api/chats/%d/messages", cmd.Chat), dto)
	if err != nil {
		return uuid.Nil, err
	}
	var created createdDTO
	if err = json.Unmarshal(raw, &created); err != nil {
		return uuid.Nil, fmt.Errorf("decoding send response: %w", err)
	}
	return uuid.Parse(created.ID)
}

func (a *API) Notifications(ctx context.Context) ([]domain.Notification, error) {
	raw, err := a.c.FetchResource(ctx, "/api/notifications")
	if err != nil {
		return nil, err
	}
	var dtos []notificationDTO
	if err = json.Unmarshal(raw, &dtos); err != nil {
		return nil, fmt.Errorf("decoding notifications: %w", err)
	}
	return lo.Map(dtos, func(dto notificationDTO, _ int) domain.Notification {
		return domain.Notification{
			ID:        dto.ID,
			Type:      domain.NotificationType(dto.Type),
			Title:     dto.Title,
			Content:   dto.Content,
			Read:      dto.Read,
			CreatedAt: dto.CreatedAt,
		}
	}), nil
}

func (a *API) MarkRead(ctx context.Context, id string) error {
	_, err := a.c.SubmitMutation(ctx, "POST", "/api/notifications/"+id+"/read", nil)
	return err
}

func (a *API) MarkAllRead(ctx context.Context) error {
	_, err := a.c.SubmitMutation(ctx, "POST", "/api/notifications/read-all", nil)
	return err
}

func toMessage(dto messageDTO) domain.Message {
	id, _ := uuid.Parse(dto.ID)
	msg := domain.Message{
		ID:        id,
		Chat:      domain.ChatID(dto.ChatID),
		SenderID:  dto.Sender,
		Content:   dto.Content,
		Private:   dto.IsPrivate,
		CreatedAt: dto.CreatedAt,
	}
	if dto.AttachmentURL != "" {
		msg.Attachment = &domain.Attachment{
			URL:  dto.AttachmentURL,
			Kind: domain.MediaKind(dto.AttachmentKind),
		}
	}
	return msg
}
