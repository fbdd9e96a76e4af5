package routing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/nerdson/internal/domain"
)

type recordingHandler struct {
	mu      sync.Mutex
	order   map[string][]string
	active  map[string]int
	overlap bool
	delay   time.Duration
	panicOn string
}

func newRecordingHandler(delay time.Duration) *recordingHandler {
	return &recordingHandler{order: make(map[string][]string), active: make(map[string]int), delay: delay}
}

func (h *recordingHandler) Handle(ctx context.Context, msg domain.InboundMessage) Result {
	h.mu.Lock()
	h.active[msg.From]++
	if h.active[msg.From] > 1 {
		h.overlap = true
	}
	h.mu.Unlock()

	time.Sleep(h.delay)

	h.mu.Lock()
	h.active[msg.From]--
	h.order[msg.From] = append(h.order[msg.From], msg.Body)
	h.mu.Unlock()

	if msg.Body == h.panicOn {
		panic("boom")
	}
	return Result{}
}

func TestDispatcherPreservesPerUserOrder(t *testing.T) {
	h := newRecordingHandler(time.Millisecond)
	d := NewDispatcher(h, silentLog())

	users := []string{"a", "b", "c"}
	for i := 0; i < 10; i++ {
		for _, u := range users {
			require.NoError(t, d.Dispatch(context.Background(), domain.InboundMessage{From: u, Body: fmt.Sprint(i)}))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))

	want := []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}
	for _, u := range users {
		assert.Equal(t, want, h.order[u], u)
	}
	assert.False(t, h.overlap, "messages of one user never overlap")
	assert.Equal(t, 0, d.Pending())
}

func TestDispatcherUsersRunConcurrently(t *testing.T) {
	var running, peak atomic.Int32
	release := make(chan struct{})
	h := handlerFunc(func(ctx context.Context, msg domain.InboundMessage) Result {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return Result{}
	})
	d := NewDispatcher(h, silentLog())

	require.NoError(t, d.Dispatch(context.Background(), domain.InboundMessage{From: "a"}))
	require.NoError(t, d.Dispatch(context.Background(), domain.InboundMessage{From: "b"}))

	assert.Eventually(t, func() bool { return peak.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	close(release)
	require.NoError(t, d.Wait(context.Background()))
}

func TestDispatcherDetachesCancellation(t *testing.T) {
	var sawCanceled atomic.Bool
	h := handlerFunc(func(ctx context.Context, msg domain.InboundMessage) Result {
		time.Sleep(20 * time.Millisecond)
		sawCanceled.Store(ctx.Err() != nil)
		return Result{}
	})
	d := NewDispatcher(h, silentLog())

	reqCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Dispatch(reqCtx, domain.InboundMessage{From: "a"}))
	cancel()

	require.NoError(t, d.Wait(context.Background()))
	assert.False(t, sawCanceled.Load())
}

func TestDispatcherRecoversPanics(t *testing.T) {
	h := newRecordingHandler(0)
	h.panicOn = "bad"
	d := NewDispatcher(h, silentLog())

	require.NoError(t, d.Dispatch(context.Background(), domain.InboundMessage{From: "a", Body: "bad"}))
	require.NoError(t, d.Dispatch(context.Background(), domain.InboundMessage{From: "a", Body: "good"}))
	require.NoError(t, d.Wait(context.Background()))

	assert.Equal(t, []string{"bad", "good"}, h.order["a"])
}

func TestDispatcherClose(t *testing.T) {
	d := NewDispatcher(newRecordingHandler(0), silentLog())
	d.Close()
	assert.ErrorIs(t, d.Dispatch(context.Background(), domain.InboundMessage{From: "a"}), ErrDispatcherClosed)
}

func TestDispatcherWaitTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	d := NewDispatcher(handlerFunc(func(context.Context, domain.InboundMessage) Result {
		<-release
		return Result{}
	}), silentLog())
	require.NoError(t, d.Dispatch(context.Background(), domain.InboundMessage{From: "a"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)
}

func TestDispatcherWithEngine(t *testing.T) {
	h := newHarness(t)
	d := NewDispatcher(h.engine, silentLog())

	for _, body := range []string{"oi", "qual o prazo?", "e a medida?"} {
		msg := h.at(13, 20, 0, body)
		require.NoError(t, d.Dispatch(context.Background(), msg))
	}
	require.NoError(t, d.Wait(context.Background()))

	hist := h.sessions.History(testUser)
	require.Len(t, hist, 7)
	assert.Equal(t, "qual o prazo?", hist[3].Content)
	assert.Equal(t, "e a medida?", hist[5].Content)
}

type handlerFunc func(ctx context.Context, msg domain.InboundMessage) Result

func (f handlerFunc) Handle(ctx context.Context, msg domain.InboundMessage) Result { return f(ctx, msg) }
