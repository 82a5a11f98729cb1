// Package domain contains core domain types for the HR resource chat.
package domain

import (
	"time"
)

// Visitor is an anonymous per-device identity established by cookie.
type Visitor struct {
	VisitorID   string    `json:"visitor_id"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// IdleFor returns how long the visitor has been inactive as of now.
// Returns 0 for a visitor seen in the future (clock skew).
func (v *Visitor) IdleFor(now time.Time) time.Duration {
	idle := now.Sub(v.LastSeenAt)
	if idle < 0 {
		return 0
	}
	return idle
}

// ArchivedMessage is a conversation message as kept by the transcript archive.
type ArchivedMessage struct {
	Message
	VisitorID string `json:"visitor_id"`
	SessionID string `json:"session_id"`
}
