package routing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/soyeahso/nerdson/internal/domain"
	"github.com/soyeahso/nerdson/internal/hooks"
	"github.com/soyeahso/nerdson/internal/llm"
	"github.com/soyeahso/nerdson/internal/logging"
	"github.com/soyeahso/nerdson/internal/policy"
	"github.com/soyeahso/nerdson/internal/session"
)

const testUser = "whatsapp:+5511999990000"

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// fakeClock never blocks; Sleep advances time and records the pause.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// recordingSender keeps every outbound message; failWith makes Send fail.
type recordingSender struct {
	mu       sync.Mutex
	sent     []domain.OutboundMessage
	failWith error
}

func (s *recordingSender) Send(_ context.Context, msg domain.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.failWith
}

func (s *recordingSender) Bodies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, m := range s.sent {
		out[i] = m.Body
	}
	return out
}

type harness struct {
	engine   *Engine
	sessions *session.Store
	sender   *recordingSender
	llm      *llm.MockClient
	clock    *fakeClock
	hooks    *hooks.Manager
	loc      *time.Location
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	h := &harness{
		sessions: session.NewStore(),
		sender:   &recordingSender{},
		llm:      &llm.MockClient{},
		clock:    &fakeClock{now: time.Date(2026, 10, 13, 14, 0, 0, 0, loc)},
		hooks:    hooks.NewManager(silentLog()),
		loc:      loc,
	}
	h.engine = NewEngine(Options{
		Sessions:    h.sessions,
		Policy:      policy.Default(),
		Persona:     "Você é o Dog Nerdson.",
		Sender:      h.sender,
		Completer:   h.llm,
		Transcriber: h.llm,
		Clock:       h.clock,
		Hooks:       h.hooks,
	}, silentLog())
	return h
}

// at builds a message received at the given São Paulo wall time.
func (h *harness) at(day, hour, minute int, body string) domain.InboundMessage {
	return domain.InboundMessage{
		From:       testUser,
		Body:       body,
		ReceivedAt: time.Date(2026, 10, day, hour, minute, 0, 0, h.loc),
	}
}

func (h *harness) systemPrompt() string {
	return policy.SystemPrompt("Você é o Dog Nerdson.")
}

var errBoom = errors.New("boom")
