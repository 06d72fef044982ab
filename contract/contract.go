//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"booking-sync/domain"
	"booking-sync/domain/event"
	"context"
	"reflect"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// API is the request/response collaborator of the sync core. The
// concrete implementation lives in transport; everything here consumes
// it as a black box.
type API interface {
	Chat(ctx context.Context, id domain.ChatID) (domain.Chat, error)
	Messages(ctx context.Context, id domain.ChatID) ([]domain.Message, error)
	SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (uuid.UUID, error)
	Notifications(ctx context.Context) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
}

// PushConn is one live connection. Next blocks until an inbound frame
// arrives or the transport fails.
type PushConn interface {
	Emit(event string, payload any) error
	Next() (event.Frame, error)
	Close() error
}

// PushDialer opens a live connection for an authenticated session.
type PushDialer interface {
	Dial(ctx context.Context, credential string) (PushConn, error)
}
