package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/nerdson/internal/domain"
	"github.com/soyeahso/nerdson/internal/logging"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

type capturedRequest struct {
	path string
	user string
	pass string
	form url.Values
}

func fakeTwilio(t *testing.T, status int, body string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		user, pass, _ := r.BasicAuth()
		mu.Lock()
		reqs = append(reqs, capturedRequest{path: r.URL.Path, user: user, pass: pass, form: r.PostForm})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func newSender(srv *httptest.Server) *Sender {
	return NewSender(Config{
		AccountSID: "AC123",
		AuthToken:  "secret",
		From:       "whatsapp:+14155238886",
		APIBase:    srv.URL + "/2010-04-01/",
		Timeout:    2 * time.Second,
	}, silentLog())
}

func TestSendSuccess(t *testing.T) {
	srv, reqs := fakeTwilio(t, http.StatusCreated, `{"sid":"SM1"}`)

	err := newSender(srv).Send(context.Background(), domain.OutboundMessage{To: "whatsapp:+5511999990000", Body: "Oiee!"})
	require.NoError(t, err)

	require.Len(t, *reqs, 1)
	got := (*reqs)[0]
	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", got.path)
	assert.Equal(t, "AC123", got.user)
	assert.Equal(t, "secret", got.pass)
	assert.Equal(t, "whatsapp:+14155238886", got.form.Get("From"))
	assert.Equal(t, "whatsapp:+5511999990000", got.form.Get("To"))
	assert.Equal(t, "Oiee!", got.form.Get("Body"))
}

func TestSendRejected(t *testing.T) {
	srv, _ := fakeTwilio(t, http.StatusBadRequest, `{"code":21211,"message":"Invalid 'To' Phone Number","status":400}`)

	err := newSender(srv).Send(context.Background(), domain.OutboundMessage{To: "bad", Body: "x"})
	var se *SendError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Equal(t, 21211, se.Code)
	assert.Contains(t, se.Error(), "Invalid 'To' Phone Number")
}

func TestSendOKIsNotCreated(t *testing.T) {
	srv, _ := fakeTwilio(t, http.StatusOK, `not json`)

	err := newSender(srv).Send(context.Background(), domain.OutboundMessage{To: "x", Body: "x"})
	var se *SendError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusOK, se.Status)
	assert.Equal(t, "not json", se.Body)
}

func TestSendMissingCredentials(t *testing.T) {
	s := NewSender(Config{APIBase: "http://127.0.0.1:1"}, silentLog())
	err := s.Send(context.Background(), domain.OutboundMessage{To: "x", Body: "x"})
	assert.True(t, errors.Is(err, ErrMissingCredentials))
}

func TestSendTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	s := NewSender(Config{AccountSID: "AC", AuthToken: "t", APIBase: base, Timeout: time.Second}, silentLog())
	err := s.Send(context.Background(), domain.OutboundMessage{To: "x", Body: "x"})
	require.Error(t, err)
	var se *SendError
	assert.False(t, errors.As(err, &se))
}

func TestSendSplitsLongBody(t *testing.T) {
	srv, reqs := fakeTwilio(t, http.StatusCreated, `{}`)

	para := strings.Repeat("palavra ", 150) // 1200 chars
	body := strings.TrimSpace(para) + "\n\n" + strings.TrimSpace(para)

	require.NoError(t, newSender(srv).Send(context.Background(), domain.OutboundMessage{To: "x", Body: body}))
	require.Len(t, *reqs, 2)
	for _, r := range *reqs {
		assert.LessOrEqual(t, len([]rune(r.form.Get("Body"))), MaxBodyChars)
	}
	assert.Equal(t, strings.TrimSpace(para), (*reqs)[0].form.Get("Body"))
}

func TestSplitBody(t *testing.T) {
	assert.Equal(t, []string{"curta"}, splitBody("curta", 10))
	assert.Equal(t, []string{"aaaa bbbb", "cccc"}, splitBody("aaaa bbbb cccc", 10))
	assert.Equal(t, []string{"linha um", "linha dois"}, splitBody("linha um\nlinha dois", 12))
	assert.Equal(t, []string{"abcde", "fghij", "k"}, splitBody("abcdefghijk", 5))

	// multibyte runes are never split
	parts := splitBody(strings.Repeat("é", 7), 3)
	assert.Equal(t, []string{"ééé", "ééé", "é"}, parts)
}

func TestParseInbound(t *testing.T) {
	now := time.Date(2026, 10, 13, 17, 0, 0, 0, time.UTC)
	form := url.Values{
		"Body":              {"qual o prazo?"},
		"From":              {"whatsapp:+5511999990000"},
		"To":                {"whatsapp:+14155238886"},
		"MessageSid":        {"SM123"},
		"ProfileName":       {"Ana"},
		"NumMedia":          {"1"},
		"MediaUrl0":         {"https://api.twilio.com/media/ME1"},
		"MediaContentType0": {"audio/ogg"},
	}

	msg := ParseInbound(form, now)
	assert.Equal(t, "SM123", msg.ID)
	assert.Equal(t, "whatsapp:+5511999990000", msg.From)
	assert.Equal(t, "whatsapp:+14155238886", msg.To)
	assert.Equal(t, "Ana", msg.FromName)
	assert.Equal(t, "qual o prazo?", msg.Body)
	assert.Equal(t, now, msg.ReceivedAt)
	require.Len(t, msg.Media, 1)

	audio, ok := msg.Audio()
	require.True(t, ok)
	assert.Equal(t, "https://api.twilio.com/media/ME1", audio.URL)
}

func TestParseInboundNoMedia(t *testing.T) {
	msg := ParseInbound(url.Values{"Body": {"oi"}, "NumMedia": {"0"}}, time.Now())
	assert.Empty(t, msg.From)
	assert.Empty(t, msg.Media)
	_, ok := msg.Audio()
	assert.False(t, ok)

	img := ParseInbound(url.Values{"From": {"x"}, "NumMedia": {"1"}, "MediaUrl0": {"u"}, "MediaContentType0": {"image/jpeg"}}, time.Now())
	require.Len(t, img.Media, 1)
	_, ok = img.Audio()
	assert.False(t, ok)
}

func TestParseInboundClampsMediaCount(t *testing.T) {
	form := url.Values{"From": {"u"}, "NumMedia": {"2147483647"}}
	for i := 0; i < 12; i++ {
		form.Set(fmt.Sprintf("MediaUrl%d", i), fmt.Sprintf("https://media.example/%d", i))
	}

	start := time.Now()
	msg := ParseInbound(form, start)
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, msg.Media, maxMedia)

	neg := ParseInbound(url.Values{"From": {"u"}, "NumMedia": {"-5"}, "MediaUrl0": {"x"}}, start)
	assert.Empty(t, neg.Media)
}
