// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/hr-resource-chat/internal/domain"
)

// Repository defines the interface for persisting visitors and chat transcripts.
type Repository interface {
	// GetVisitor retrieves a visitor by ID. Returns nil, nil if unknown.
	GetVisitor(ctx context.Context, visitorID string) (*domain.Visitor, error)

	// TouchVisitor creates the visitor if needed and updates last_seen_at.
	TouchVisitor(ctx context.Context, visitorID string, seen time.Time) error

	// AppendMessage archives one conversation message.
	AppendMessage(ctx context.Context, msg *domain.ArchivedMessage) error

	// ListMessages returns the newest limit messages of a page session,
	// oldest first. limit <= 0 means no limit.
	ListMessages(ctx context.Context, visitorID, sessionID string, limit int) ([]*domain.ArchivedMessage, error)

	// PruneMessages removes archived messages older than the retention window.
	PruneMessages(ctx context.Context, retention time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
