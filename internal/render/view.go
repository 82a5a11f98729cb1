package render

import (
	"github.com/ashureev/hr-resource-chat/internal/domain"
)

// MessageView is a message together with its rendered paragraphs.
type MessageView struct {
	ID         string        `json:"id"`
	Origin     domain.Origin `json:"origin"`
	Text       string        `json:"text"`
	Timestamp  string        `json:"timestamp"`
	Paragraphs []Paragraph   `json:"paragraphs"`
}

// ConversationView is what front-ends draw for a conversation.
type ConversationView struct {
	Messages     []MessageView `json:"messages"`
	PendingInput string        `json:"pending_input"`
	ErrorText    string        `json:"error_text,omitempty"`
	Waiting      bool          `json:"waiting"`
}

// Message renders a single message.
func Message(m domain.Message) MessageView {
	return MessageView{
		ID:         m.ID,
		Origin:     m.Origin,
		Text:       m.Text,
		Timestamp:  m.Timestamp,
		Paragraphs: RenderText(m.Text),
	}
}

// Conversation renders every message of s in order.
func Conversation(s domain.ConversationState) ConversationView {
	msgs := make([]MessageView, 0, len(s.Messages))
	for _, m := range s.Messages {
		msgs = append(msgs, Message(m))
	}
	return ConversationView{
		Messages:     msgs,
		PendingInput: s.PendingInput,
		ErrorText:    s.ErrorText,
		Waiting:      s.Waiting,
	}
}
