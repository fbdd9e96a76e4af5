// Package whatsapp talks to the Twilio WhatsApp gateway: it sends outbound
// text messages and parses inbound webhook forms.
package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/soyeahso/nerdson/internal/domain"
	"github.com/soyeahso/nerdson/internal/logging"
	"github.com/soyeahso/nerdson/internal/version"
)

// MaxBodyChars is the gateway's per-message body limit.
const MaxBodyChars = 1600

// ErrMissingCredentials is returned by Send when the account SID or auth
// token is not configured.
var ErrMissingCredentials = errors.New("whatsapp: twilio credentials not configured")

// SendError is returned when the gateway rejects a message.
type SendError struct {
	Status  int
	Code    int    // gateway error code, when present
	Message string // gateway error message, when present
	Body    string
}

func (e *SendError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("whatsapp: send failed (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("whatsapp: send failed (%d): %s", e.Status, e.Body)
}

// Config configures a Sender.
type Config struct {
	AccountSID string
	AuthToken  string
	From       string // e.g. "whatsapp:+14155238886"
	APIBase    string // e.g. "https://api.twilio.com/2010-04-01"
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Sender delivers text messages through the Twilio Messages API.
type Sender struct {
	cfg    Config
	client *http.Client
	log    *logging.Logger
}

// NewSender creates a gateway client. Missing credentials are reported on
// each Send, never at construction.
func NewSender(cfg Config, log *logging.Logger) *Sender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Sender{cfg: cfg, client: client, log: log.Sub("whatsapp")}
}

// Send posts msg to the gateway. Bodies longer than MaxBodyChars go out as
// several messages, in order; the first failure stops the rest.
func (s *Sender) Send(ctx context.Context, msg domain.OutboundMessage) error {
	if s.cfg.AccountSID == "" || s.cfg.AuthToken == "" {
		s.log.Error().Str("to", msg.To).Msg("twilio credentials missing, message not sent")
		return ErrMissingCredentials
	}

	for _, part := range splitBody(msg.Body, MaxBodyChars) {
		if err := s.post(ctx, msg.To, part); err != nil {
			s.log.Error().Err(err).Str("to", msg.To).Msg("failed to send message")
			return err
		}
	}
	s.log.Debug().Str("to", msg.To).Int("chars", len([]rune(msg.Body))).Msg("message sent")
	return nil
}

func (s *Sender) post(ctx context.Context, to, body string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	form := url.Values{}
	form.Set("From", s.cfg.From)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.cfg.APIBase, url.PathEscape(s.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("whatsapp: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	sendErr := &SendError{Status: resp.StatusCode, Body: string(raw)}
	var apiErr struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &apiErr) == nil {
		sendErr.Code = apiErr.Code
		sendErr.Message = apiErr.Message
	}
	return sendErr
}
