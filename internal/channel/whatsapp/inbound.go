package whatsapp

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/soyeahso/nerdson/internal/domain"
)

// maxMedia is the most attachments Twilio puts on one WhatsApp message.
const maxMedia = 10

// ParseInbound converts a webhook form into an inbound message. Media items
// keep their gateway order. The caller decides what to do with a message
// that has no sender.
func ParseInbound(form url.Values, now time.Time) domain.InboundMessage {
	msg := domain.InboundMessage{
		ID:         form.Get("MessageSid"),
		From:       strings.TrimSpace(form.Get("From")),
		To:         form.Get("To"),
		FromName:   form.Get("ProfileName"),
		Body:       form.Get("Body"),
		ReceivedAt: now,
	}

	n, _ := strconv.Atoi(form.Get("NumMedia"))
	n = min(max(n, 0), maxMedia)
	for i := 0; i < n; i++ {
		u := form.Get(fmt.Sprintf("MediaUrl%d", i))
		if u == "" {
			continue
		}
		msg.Media = append(msg.Media, domain.Attachment{
			URL:         u,
			ContentType: form.Get(fmt.Sprintf("MediaContentType%d", i)),
		})
	}
	return msg
}
