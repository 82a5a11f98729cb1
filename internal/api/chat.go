package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/hr-resource-chat/internal/domain"
	"github.com/ashureev/hr-resource-chat/internal/identity"
	"github.com/ashureev/hr-resource-chat/internal/render"
	"github.com/go-chi/chi/v5"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// ChatHandler serves the conversation endpoints of a page session.
type ChatHandler struct {
	*Handler
	chatLimit func(http.Handler) http.Handler
}

// NewChatHandler creates a chat handler. chatLimit wraps POST /api/chat and may be nil.
func NewChatHandler(base *Handler, chatLimit func(http.Handler) http.Handler) *ChatHandler {
	return &ChatHandler{Handler: base, chatLimit: chatLimit}
}

// RegisterRoutes registers the conversation routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/conversation", h.GetConversation)
		r.Put("/conversation/input", h.SetInput)
		if h.chatLimit != nil {
			r.With(h.chatLimit).Post("/chat", h.Submit)
		} else {
			r.Post("/chat", h.Submit)
		}
		r.Post("/chat/cancel", h.Cancel)
		r.Get("/history", h.History)
		r.Post("/employees/card", h.EmployeeCard)
	})
}

type inputRequest struct {
	Input string `json:"input"`
}

type chatRequest struct {
	Query string `json:"query"`
}

type chatResponse struct {
	Accepted     bool                    `json:"accepted"`
	Conversation render.ConversationView `json:"conversation"`
}

// GetConversation returns the rendered state of the page session.
func (h *ChatHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(r)
	if !ok {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	JSON(w, http.StatusOK, render.Conversation(c.Snapshot()))
}

// SetInput stores the text currently typed in the input field.
func (h *ChatHandler) SetInput(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(r)
	if !ok {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req inputRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	c.SetInput(req.Input)
	w.WriteHeader(http.StatusNoContent)
}

// Submit sends a query to the chatbot. Blank queries and queries sent while
// another is in flight are ignored and answered with accepted=false.
// With ?wait=true the response is written once the query settles.
func (h *ChatHandler) Submit(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(r)
	if !ok {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req chatRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if !c.Submit(r.Context(), req.Query) {
		JSON(w, http.StatusOK, chatResponse{Accepted: false, Conversation: render.Conversation(c.Snapshot())})
		return
	}

	status := http.StatusAccepted
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		if err := c.WaitContext(r.Context()); err != nil {
			slog.Warn("Client left before query settled",
				"visitor_id", identity.VisitorIDFromContext(r.Context()),
				"session_id", identity.SessionIDFromContext(r.Context()),
				"error", err)
			return
		}
		status = http.StatusOK
	}
	JSON(w, status, chatResponse{Accepted: true, Conversation: render.Conversation(c.Snapshot())})
}

// Cancel aborts the in-flight query of the page session.
func (h *ChatHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	if visitorID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	cancelled := false
	if c := h.sessions.Lookup(visitorID, identity.SessionIDFromContext(r.Context())); c != nil {
		cancelled = c.Cancel()
	}
	JSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// History returns the archived transcript of the page session.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	if visitorID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sessionID := identity.SessionIDFromContext(r.Context())

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	archived, err := h.repo.ListMessages(r.Context(), visitorID, sessionID, limit)
	if err != nil {
		slog.Error("Failed to list archived messages", "visitor_id", visitorID, "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"messages":   archivedViews(archived),
	})
}

// EmployeeCard renders an employee record as a labeled card.
func (h *ChatHandler) EmployeeCard(w http.ResponseWriter, r *http.Request) {
	var e domain.Employee
	if err := h.decodeJSON(w, r, &e); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	JSON(w, http.StatusOK, render.EmployeeCard(e))
}

func archivedViews(archived []*domain.ArchivedMessage) []render.MessageView {
	views := make([]render.MessageView, 0, len(archived))
	for _, a := range archived {
		views = append(views, render.Message(a.Message))
	}
	return views
}
