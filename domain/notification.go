package domain

import "time"

type NotificationType string

const (
	NotificationBooking  NotificationType = "booking"
	NotificationMessage  NotificationType = "message"
	NotificationTask     NotificationType = "task"
	NotificationApproval NotificationType = "approval"
	NotificationOther    NotificationType = "other"
)

// Notification is owned by the addressed user. The Read flag is
// monotonic: false to true, never back.
type Notification struct {
	ID        string
	Type      NotificationType
	Title     string
	Content   string
	Read      bool
	CreatedAt time.Time
}
