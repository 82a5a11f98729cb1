package store

import (
	"context"

	"github.com/ashureev/hr-resource-chat/internal/domain"
)

// Recorder archives the messages of one page session.
type Recorder struct {
	repo      Repository
	visitorID string
	sessionID string
}

// NewRecorder binds a recorder to a page session.
func NewRecorder(repo Repository, visitorID, sessionID string) *Recorder {
	return &Recorder{repo: repo, visitorID: visitorID, sessionID: sessionID}
}

// Record appends msg to the transcript archive.
func (r *Recorder) Record(ctx context.Context, msg domain.Message) error {
	return r.repo.AppendMessage(ctx, &domain.ArchivedMessage{
		Message:   msg,
		VisitorID: r.visitorID,
		SessionID: r.sessionID,
	})
}
