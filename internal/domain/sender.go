package domain

import "context"

// Sender delivers outbound messages through a messaging gateway.
// A nil error means the provider accepted the message.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}
