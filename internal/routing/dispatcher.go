package routing

import (
	"context"
	"errors"
	"sync"

	"github.com/soyeahso/nerdson/internal/domain"
	"github.com/soyeahso/nerdson/internal/logging"
)

// ErrDispatcherClosed is returned by Dispatch after Close.
var ErrDispatcherClosed = errors.New("routing: dispatcher closed")

// Handler processes one inbound message.
type Handler interface {
	Handle(ctx context.Context, msg domain.InboundMessage) Result
}

type job struct {
	ctx context.Context
	msg domain.InboundMessage
}

// Dispatcher queues inbound messages per user. Each user's queue is drained
// by a single goroutine in arrival order; different users run concurrently.
// A drained queue's goroutine exits, so idle users cost nothing.
type Dispatcher struct {
	handler Handler
	log     *logging.Logger

	mu     sync.Mutex
	queues map[string][]job
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher feeding h.
func NewDispatcher(h Handler, log *logging.Logger) *Dispatcher {
	return &Dispatcher{
		handler: h,
		log:     log.Sub("dispatch"),
		queues:  make(map[string][]job),
	}
}

// Dispatch enqueues msg and returns immediately. The message is handled
// with a context detached from ctx's cancellation, so a finished webhook
// request does not abort provider calls.
func (d *Dispatcher) Dispatch(ctx context.Context, msg domain.InboundMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	q, running := d.queues[msg.From]
	d.queues[msg.From] = append(q, job{ctx: context.WithoutCancel(ctx), msg: msg})
	if !running {
		d.wg.Add(1)
		go d.drain(msg.From)
	}
	return nil
}

func (d *Dispatcher) drain(user string) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		q := d.queues[user]
		if len(q) == 0 {
			delete(d.queues, user)
			d.mu.Unlock()
			return
		}
		next := q[0]
		d.queues[user] = q[1:]
		d.mu.Unlock()

		d.run(next)
	}
}

func (d *Dispatcher) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("user", j.msg.From).Msg("handler panicked")
		}
	}()
	d.handler.Handle(j.ctx, j.msg)
}

// Pending returns the number of queued messages not yet started.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, q := range d.queues {
		n += len(q)
	}
	return n
}

// Close stops accepting messages. Already queued messages still run.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

// Wait blocks until every queued message has been handled or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
