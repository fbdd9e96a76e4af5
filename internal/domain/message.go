package domain

import (
	"strings"
	"time"
)

// Attachment is a media item carried by an inbound message.
type Attachment struct {
	URL         string `json:"url,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// IsAudio reports whether the attachment's content type indicates audio.
func (a Attachment) IsAudio() bool {
	return strings.Contains(strings.ToLower(a.ContentType), "audio")
}

// InboundMessage is a message received from the messaging gateway.
type InboundMessage struct {
	ID         string       `json:"id,omitempty"`
	From       string       `json:"from"`
	To         string       `json:"to,omitempty"`
	FromName   string       `json:"fromName,omitempty"`
	Body       string       `json:"body"`
	Media      []Attachment `json:"media,omitempty"`
	ReceivedAt time.Time    `json:"receivedAt"`
}

// Audio returns the first attachment when it is audio.
func (m InboundMessage) Audio() (Attachment, bool) {
	if len(m.Media) == 0 || !m.Media[0].IsAudio() {
		return Attachment{}, false
	}
	return m.Media[0], true
}

// OutboundMessage is a text message to deliver through the gateway.
type OutboundMessage struct {
	To   string `json:"to"`
	Body string `json:"body"`
}
