package api

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/ashureev/hr-resource-chat/internal/domain"
	"github.com/ashureev/hr-resource-chat/internal/identity"
	"github.com/ashureev/hr-resource-chat/internal/render"
	"github.com/ashureev/hr-resource-chat/web"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// PageHandler serves the server-rendered HTML pages.
type PageHandler struct {
	*Handler
}

// NewPageHandler creates a page handler.
func NewPageHandler(base *Handler) *PageHandler {
	return &PageHandler{Handler: base}
}

// RegisterRoutes registers the page routes.
func (h *PageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Index)
	r.Get("/transcript", h.Transcript)
}

// Index renders the chat page. Every load starts a new page session unless
// the request names one explicitly.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	sessionID := uuid.NewString()
	state := domain.ConversationState{Messages: []domain.Message{}}

	if r.URL.Query().Get(identity.SessionQueryParam) != "" {
		sessionID = identity.SessionIDFromContext(r.Context())
		if c := h.sessions.Lookup(identity.VisitorIDFromContext(r.Context()), sessionID); c != nil {
			state = c.Snapshot()
		}
	}

	h.render(w, func(buf *bytes.Buffer) error {
		return web.RenderIndex(buf, web.IndexData{
			Title:       web.AppTitle,
			Placeholder: web.InputPlaceholder,
			TypingText:  web.TypingText,
			SessionID:   sessionID,
			View:        render.Conversation(state),
		})
	})
}

// Transcript renders the archived messages of a page session.
func (h *PageHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	archived, err := h.repo.ListMessages(r.Context(), visitorID, sessionID, maxHistoryLimit)
	if err != nil {
		slog.Error("Failed to list archived messages", "visitor_id", visitorID, "session_id", sessionID, "error", err)
		http.Error(w, "failed to load transcript", http.StatusInternalServerError)
		return
	}

	h.render(w, func(buf *bytes.Buffer) error {
		return web.RenderTranscript(buf, web.TranscriptData{
			Title:     web.AppTitle,
			SessionID: sessionID,
			Messages:  archivedViews(archived),
		})
	})
}

func (h *PageHandler) render(w http.ResponseWriter, exec func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := exec(&buf); err != nil {
		slog.Error("Failed to render page", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
