// Package live pushes conversation snapshots to browsers over WebSocket.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/hr-resource-chat/internal/conversation"
	"github.com/ashureev/hr-resource-chat/internal/domain"
	"github.com/ashureev/hr-resource-chat/internal/identity"
	"github.com/ashureev/hr-resource-chat/internal/metrics"
	"github.com/ashureev/hr-resource-chat/internal/render"
	"github.com/ashureev/hr-resource-chat/internal/session"
	"github.com/coder/websocket"
)

const writeTimeout = 10 * time.Second

// WebSocketHandler streams a page session's conversation to the browser and
// accepts chat commands from it.
type WebSocketHandler struct {
	sessions      *session.Registry
	visitors      identity.VisitorToucher
	limiter       SubmitLimiter
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler. visitors may be nil.
func NewWebSocketHandler(sessions *session.Registry, visitors identity.VisitorToucher, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		sessions:      sessions,
		visitors:      visitors,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// SubmitLimiter decides whether a visitor may submit another query.
type SubmitLimiter interface {
	Allow(key string) bool
}

// SetLimiter rate limits submits per visitor. Pass the limiter guarding
// POST /api/chat so both paths share one budget.
func (h *WebSocketHandler) SetLimiter(limiter SubmitLimiter) {
	h.limiter = limiter
}

// clientMessage is a command sent by the page.
type clientMessage struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Query string `json:"query,omitempty"`
}

// serverMessage is pushed to the page.
type serverMessage struct {
	Type         string                   `json:"type"`
	Conversation *render.ConversationView `json:"conversation,omitempty"`
	Accepted     *bool                    `json:"accepted,omitempty"`
	Error        string                   `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if visitorID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	slog.Info("WebSocket connection request", "visitor_id", visitorID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "visitor_id", visitorID)
		return
	}

	metrics.LiveConnections.Inc()
	defer metrics.LiveConnections.Dec()

	c := h.sessions.Get(visitorID, sessionID)
	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		h.inputLoop(ctx, ws, c, visitorID, sessionID)
	}()

	h.outputLoop(ctx, ws, updates, visitorID)

	// Close before cancel: a cancelled read context makes the library close
	// with a policy violation instead.
	if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
		slog.Debug("Failed to close websocket", "error", closeErr, "visitor_id", visitorID)
	}
	slog.Info("Live session ended", "visitor_id", visitorID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) inputLoop(ctx context.Context, ws *websocket.Conn, c *conversation.Controller, visitorID, sessionID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				slog.Debug("WebSocket closed by client", "visitor_id", visitorID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "visitor_id", visitorID)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("Ignoring malformed live message", "error", err, "visitor_id", visitorID)
			continue
		}

		switch msg.Type {
		case "input":
			c.SetInput(msg.Text)
		case "submit":
			reply := serverMessage{Type: "submitted"}
			accepted := false
			if h.limiter != nil && !h.limiter.Allow(visitorID) {
				metrics.RateLimitHits.WithLabelValues("chat_ws").Inc()
				reply.Error = "rate limit exceeded"
			} else {
				accepted = c.Submit(ctx, msg.Query)
			}
			reply.Accepted = &accepted
			if err := h.writeJSON(ctx, ws, reply); err != nil {
				slog.Debug("Failed to send submit acknowledgment", "error", err)
			}
		case "cancel":
			c.Cancel()
		case "ping":
			if err := h.writeJSON(ctx, ws, serverMessage{Type: "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
			}
		default:
			continue
		}

		if h.visitors != nil {
			go func() {
				touchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := h.visitors.TouchVisitor(touchCtx, visitorID, time.Now()); err != nil {
					slog.Warn("Failed to update last seen", "error", err, "session_id", sessionID)
				}
			}()
		}
	}
}

// outputLoop returns when the client leaves or the page session is closed.
func (h *WebSocketHandler) outputLoop(ctx context.Context, ws *websocket.Conn, updates <-chan domain.ConversationState, visitorID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-updates:
			if !ok {
				slog.Debug("Conversation closed, ending live session", "visitor_id", visitorID)
				return
			}
			view := render.Conversation(state)
			if err := h.writeJSON(ctx, ws, serverMessage{Type: "conversation", Conversation: &view}); err != nil {
				slog.Debug("WebSocket write error", "error", err, "visitor_id", visitorID)
				return
			}
		}
	}
}

func (h *WebSocketHandler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, data)
}
