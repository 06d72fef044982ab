package domain

type ChatID int64

// Chat is owned by the booking/ticket domain. The sync core only reads
// its identifier and the open flag. Closing is terminal: once IsOpen is
// false, no further messages are accepted.
type Chat struct {
	ID     ChatID
	IsOpen bool
}
