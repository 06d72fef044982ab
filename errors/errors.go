package errors

import "fmt"

var (
	ErrWorkerPanic         = fmt.Errorf("worker panic")
	ErrChatClosed          = fmt.Errorf("chat is closed")
	ErrNotConnected        = fmt.Errorf("push channel is not connected")
	ErrHandshakeTimeout    = fmt.Errorf("push handshake timed out")
	ErrSessionExpired      = fmt.Errorf("session credential expired")
	ErrUnknownMediaKind    = fmt.Errorf("cannot determine attachment media kind")
	ErrFetchBudgetExceeded = fmt.Errorf("fetch retry budget exhausted")
	ErrInvalidPayload      = fmt.Errorf("invalid event payload")
)
