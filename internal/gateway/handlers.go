package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/nerdson/internal/channel/whatsapp"
)

const (
	maxWebhookBytes = 1 << 20
	feedReadLimit   = 4096
)

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("WhatsApp Bot is running!"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// handleWebhook accepts one inbound WhatsApp event. The gateway retries on
// non-2xx responses, so every outcome is answered with an empty 200.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusOK)

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBytes)
	if err := r.ParseForm(); err != nil {
		s.log.Warn().Err(err).Msg("unreadable webhook form")
		return
	}

	msg := whatsapp.ParseInbound(r.PostForm, s.now())
	if msg.From == "" {
		s.log.Warn().Str("sid", msg.ID).Msg("webhook without sender dropped")
		return
	}

	if err := s.dispatcher.Dispatch(r.Context(), msg); err != nil {
		s.log.Error().Err(err).Str("user", msg.From).Str("sid", msg.ID).Msg("dispatch failed")
	}
}

// handleOperatorFeed upgrades an authenticated operator to the event stream.
// Operators only listen; anything they send is discarded.
func (s *Server) handleOperatorFeed(w http.ResponseWriter, r *http.Request) {
	if !s.feedEnabled() {
		handleNotFound(w, r)
		return
	}
	if !s.authLimiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited: too many failed auth attempts")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	if !safeEqual(operatorToken(r), s.operatorToken) {
		s.authLimiter.recordFailure(r.RemoteAddr)
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("operator auth failed")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(feedReadLimit)

	client := NewClient(conn, r.RemoteAddr)
	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("operator read ended")
			}
			return
		}
	}
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}
