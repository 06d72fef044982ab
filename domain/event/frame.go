package event

import (
	"encoding/json"

	"booking-sync/errors"
)

// Frame is the event-tagged envelope exchanged over the live
// connection, in both directions.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Decode maps an inbound frame onto its typed payload. Frames with an
// unknown event name are not an error at this level; the manager logs
// and drops them.
func Decode(f Frame) (PushEvent, error) {
	switch f.Event {
	case NewMsg:
		var e NewMessage
		if err := json.Unmarshal(f.Payload, &e); err != nil {
			return nil, errors.ErrInvalidPayload
		}
		return e, nil
	case ChatClose:
		var e ChatClosed
		if err := json.Unmarshal(f.Payload, &e); err != nil {
			return nil, errors.ErrInvalidPayload
		}
		return e, nil
	}
	return nil, nil
}
