// Package api provides HTTP handlers for the HR resource chat.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ashureev/hr-resource-chat/internal/config"
	"github.com/ashureev/hr-resource-chat/internal/conversation"
	"github.com/ashureev/hr-resource-chat/internal/identity"
	"github.com/ashureev/hr-resource-chat/internal/session"
	"github.com/ashureev/hr-resource-chat/internal/store"
)

// Handler provides common handler utilities.
type Handler struct {
	repo     store.Repository
	sessions *session.Registry
	cfg      *config.Config
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, sessions *session.Registry, cfg *config.Config) *Handler {
	return &Handler{
		repo:     repo,
		sessions: sessions,
		cfg:      cfg,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// controller returns the page session controller of the request, creating it if needed.
func (h *Handler) controller(r *http.Request) (*conversation.Controller, bool) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	if visitorID == "" {
		return nil, false
	}
	return h.sessions.Get(visitorID, identity.SessionIDFromContext(r.Context())), true
}

// decodeJSON reads a size-capped JSON body into v.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	limit := int64(1 << 20)
	if h.cfg != nil && h.cfg.MaxRequestBodyBytes > 0 {
		limit = h.cfg.MaxRequestBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
