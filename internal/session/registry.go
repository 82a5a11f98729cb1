// Package session keeps one conversation controller per page session.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/hr-resource-chat/internal/conversation"
	"github.com/ashureev/hr-resource-chat/internal/metrics"
)

// Factory builds the controller for a new page session.
type Factory func(visitorID, sessionID string) *conversation.Controller

// Registry maps visitor and tab session IDs to their controllers.
type Registry struct {
	mu      sync.RWMutex
	active  map[string]map[string]*conversation.Controller
	factory Factory
	count   int
}

// NewRegistry creates an empty registry.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		active:  make(map[string]map[string]*conversation.Controller),
		factory: factory,
	}
}

// Lookup returns the controller for a page session, or nil.
func (r *Registry) Lookup(visitorID, sessionID string) *conversation.Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sessions, ok := r.active[visitorID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Get returns the controller for a page session, creating it on first use.
func (r *Registry) Get(visitorID, sessionID string) *conversation.Controller {
	if c := r.Lookup(visitorID, sessionID); c != nil {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[visitorID]; !exists {
		r.active[visitorID] = make(map[string]*conversation.Controller)
	}
	if c, exists := r.active[visitorID][sessionID]; exists {
		return c
	}

	c := r.factory(visitorID, sessionID)
	r.active[visitorID][sessionID] = c
	r.count++
	metrics.ActiveSessions.Set(float64(r.count))
	slog.Info("Conversation session opened", "visitor_id", visitorID, "session_id", sessionID)
	return c
}

// Close ends one page session, cancelling any in-flight query.
func (r *Registry) Close(visitorID, sessionID string) bool {
	r.mu.Lock()
	c := r.removeLocked(visitorID, sessionID)
	r.mu.Unlock()

	if c == nil {
		return false
	}
	c.Close()
	slog.Info("Conversation session closed", "visitor_id", visitorID, "session_id", sessionID)
	return true
}

// CloseVisitor ends every page session of a visitor.
func (r *Registry) CloseVisitor(visitorID string) int {
	r.mu.Lock()
	sessions := r.active[visitorID]
	delete(r.active, visitorID)
	r.count -= len(sessions)
	metrics.ActiveSessions.Set(float64(r.count))
	r.mu.Unlock()

	for sid, c := range sessions {
		c.Close()
		slog.Info("Conversation session closed", "visitor_id", visitorID, "session_id", sid)
	}
	return len(sessions)
}

// Len returns the number of open page sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// EvictIdle closes sessions with no live subscribers whose last activity is
// older than ttl. A query still hanging in such a session is cancelled.
func (r *Registry) EvictIdle(ttl time.Duration, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for vid, sessions := range r.active {
		for sid, c := range sessions {
			if !c.CloseIfIdle(ttl, now) {
				continue
			}
			r.removeLocked(vid, sid)
			evicted++
			slog.Info("Conversation session closed", "visitor_id", vid, "session_id", sid, "reason", "idle")
		}
	}
	return evicted
}

// CloseAll ends every page session. Used at shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.active
	r.active = make(map[string]map[string]*conversation.Controller)
	r.count = 0
	metrics.ActiveSessions.Set(0)
	r.mu.Unlock()

	for _, sessions := range all {
		for _, c := range sessions {
			c.Close()
		}
	}
}

func (r *Registry) removeLocked(visitorID, sessionID string) *conversation.Controller {
	sessions, ok := r.active[visitorID]
	if !ok {
		return nil
	}
	c, ok := sessions[sessionID]
	if !ok {
		return nil
	}
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(r.active, visitorID)
	}
	r.count--
	metrics.ActiveSessions.Set(float64(r.count))
	return c
}
