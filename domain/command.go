package domain

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SendMessageCommand is issued by the UI when the user submits the
// message form. AttachmentPath is optional and points to a local file
// whose media kind is sniffed before upload.
type SendMessageCommand struct {
	Chat           ChatID `validate:"required"`
	SenderID       string `validate:"required"`
	Content        string `validate:"required,max=4000"`
	Private        bool
	AttachmentPath string
}

func (c SendMessageCommand) Validate() error {
	return validate.Struct(c)
}

type MarkReadCommand struct {
	NotificationID string `validate:"required"`
}

func (c MarkReadCommand) Validate() error {
	return validate.Struct(c)
}
