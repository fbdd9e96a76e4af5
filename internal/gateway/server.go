// Package gateway is the relay's HTTP surface: the WhatsApp webhook, health
// endpoints and the token-protected operator event feed.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/nerdson/internal/config"
	"github.com/soyeahso/nerdson/internal/domain"
	"github.com/soyeahso/nerdson/internal/hooks"
	"github.com/soyeahso/nerdson/internal/logging"
)

var ErrClientClosed = errors.New("client connection closed")

const shutdownTimeout = 10 * time.Second

// Dispatcher accepts inbound messages for asynchronous handling.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg domain.InboundMessage) error
}

// Drainer is implemented by dispatchers that can be stopped and waited on
// during shutdown.
type Drainer interface {
	Close()
	Wait(ctx context.Context) error
}

// Server is the webhook HTTP + operator WebSocket server.
type Server struct {
	cfg           config.GatewayConfig
	operatorToken string
	log           *logging.Logger
	dispatcher    Dispatcher
	clients       *ClientRegistry
	hooks         *hooks.Manager
	now           func() time.Time

	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter

	mu   sync.Mutex
	addr string
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithHooks sets the hook manager. Lifecycle events are emitted on it and,
// when the operator feed is enabled, every event is relayed to operators.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// WithClock sets the time source stamped on inbound messages.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) {
		s.now = now
	}
}

// New creates a new gateway server feeding d.
func New(cfg config.Config, d Dispatcher, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:           cfg.Gateway,
		operatorToken: cfg.Operator.Token,
		log:           log.Sub("gateway"),
		dispatcher:    d,
		clients:       NewClientRegistry(log.Sub("operators")),
		now:           time.Now,
		authLimiter:   newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.Operator.AllowedOrigins),
		},
	}
	if s.cfg.WebhookPath == "" {
		s.cfg.WebhookPath = config.DefaultWebhookPath
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.hooks != nil && s.feedEnabled() {
		s.hooks.OnAll("operator-feed", func(_ context.Context, p hooks.Payload) error {
			s.clients.Broadcast(p)
			return nil
		})
	}
	return s
}

func (s *Server) feedEnabled() bool { return s.operatorToken != "" }

// checkWebSocketOrigin returns a function that validates WebSocket Origin headers.
// Requests without an Origin header (non-browser clients) are always allowed;
// browser origins must be listed.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// Handler builds the router with the full middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.log))
	r.Use(chiMiddleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post(s.cfg.WebhookPath, s.handleWebhook)
	r.Get("/ws/operator", s.handleOperatorFeed)
	r.NotFound(handleNotFound)
	return r
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan", "auto":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start listens for webhook and operator connections. It blocks until ctx
// is cancelled and shutdown has finished, including draining the dispatcher
// when it implements Drainer.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	defer stopLimiter()
	go s.authLimiter.run(limiterCtx)

	s.log.Info().
		Str("addr", s.Addr()).
		Str("bind", s.cfg.Bind).
		Str("webhook", s.cfg.WebhookPath).
		Bool("operatorFeed", s.feedEnabled()).
		Msg("gateway server ready")

	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.EventGatewayStart, map[string]any{
			"addr": s.Addr(),
		})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.shutdown(srv)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

// shutdown stops accepting requests, lets queued messages finish, then
// says goodbye to operators.
func (s *Server) shutdown(srv *http.Server) {
	s.log.Info().Msg("shutting down gateway server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn().Err(err).Msg("http shutdown incomplete")
	}

	if d, ok := s.dispatcher.(Drainer); ok {
		d.Close()
		if err := d.Wait(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("dispatcher did not drain before timeout")
		}
	}

	if s.hooks != nil {
		s.hooks.Emit(context.Background(), hooks.EventGatewayStop, nil)
	}
	s.clients.CloseAll()
}

// Addr returns the bound listen address, or empty string if not started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Operators returns the number of connected operator feed clients.
func (s *Server) Operators() int { return s.clients.Count() }
