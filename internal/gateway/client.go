package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/nerdson/internal/hooks"
	"github.com/soyeahso/nerdson/internal/logging"
)

const (
	feedWriteTimeout = 5 * time.Second
	feedQueueSize    = 64
)

// ErrFeedBacklog is returned by Send when an operator is not keeping up.
var ErrFeedBacklog = errors.New("operator feed backlog full")

// Client is one operator connected to the event feed. Events are queued and
// written by the client's own goroutine, so a slow socket only delays itself.
type Client struct {
	ConnID      string
	Remote      string
	Socket      *websocket.Conn
	ConnectedAt time.Time

	outbound  chan hooks.Payload
	done      chan struct{}
	stopped   chan struct{} // nil until a writer runs
	closeOnce sync.Once
}

// NewClient wraps an upgraded operator connection and starts its writer.
func NewClient(conn *websocket.Conn, remote string) *Client {
	c := newClient(conn, remote, feedQueueSize)
	c.stopped = make(chan struct{})
	go c.writeLoop()
	return c
}

func newClient(conn *websocket.Conn, remote string, queue int) *Client {
	return &Client{
		ConnID:      uuid.New().String(),
		Remote:      remote,
		Socket:      conn,
		ConnectedAt: time.Now(),
		outbound:    make(chan hooks.Payload, queue),
		done:        make(chan struct{}),
	}
}

// Send queues one event for the operator without blocking.
func (c *Client) Send(p hooks.Payload) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.outbound <- p:
		return nil
	default:
		return ErrFeedBacklog
	}
}

func (c *Client) writeLoop() {
	defer close(c.stopped)
	for {
		select {
		case p := <-c.outbound:
			c.Socket.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := c.Socket.WriteJSON(p); err != nil {
				go c.Close()
				return
			}
		case <-c.done:
			c.flush()
			return
		}
	}
}

// flush writes whatever is still queued, sharing one short deadline.
func (c *Client) flush() {
	c.Socket.SetWriteDeadline(time.Now().Add(time.Second))
	for {
		select {
		case p := <-c.outbound:
			if err := c.Socket.WriteJSON(p); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close flushes queued events, then closes the WebSocket connection. Safe to
// call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.stopped != nil {
			<-c.stopped
		}
		c.Socket.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		err = c.Socket.Close()
	})
	return err
}

// ClientRegistry manages connected operators.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client // connID → Client
	log     *logging.Logger
}

// NewClientRegistry creates an empty client registry.
func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		log:     log,
	}
}

// Add registers a connected client.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ConnID] = c
	r.log.Info().Str("connId", c.ConnID).Str("remote", c.Remote).Msg("operator connected")
}

// Remove unregisters a client by connection ID.
func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[connID]; !ok {
		return
	}
	delete(r.clients, connID)
	r.log.Info().Str("connId", connID).Msg("operator disconnected")
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast queues an event for every connected operator and never waits on
// a socket. A client that cannot take the event is closed in the background;
// its read loop then unregisters it.
func (r *ClientRegistry) Broadcast(p hooks.Payload) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		if err := c.Send(p); err != nil {
			if errors.Is(err, ErrClientClosed) {
				continue
			}
			r.log.Warn().Err(err).Str("connId", c.ConnID).Str("event", p.Event).Msg("broadcast send failed")
			go c.Close()
		}
	}
}

// CloseAll closes all connected clients.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}
