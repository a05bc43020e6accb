package email

import (
	"context"
)

// Message is one outbound email. HTMLBody is optional.
type Message struct {
	From     string
	To       string
	Subject  string
	Body     string
	HTMLBody string
}

// Sender delivers a single message through the external mail
// transport. A non-empty message id is returned when the transport
// offers one.
type Sender interface {
	Send(ctx context.Context, msg *Message) (messageID string, err error)
}
