package domain

// ConversationState is the full state of one page session's conversation.
// Waiting is true only while a query is in flight.
type ConversationState struct {
	PendingInput string    `json:"pending_input"`
	Messages     []Message `json:"messages"`
	ErrorText    string    `json:"error_text,omitempty"`
	Waiting      bool      `json:"waiting"`
}

// Clone returns a copy that shares no mutable memory with s.
func (s ConversationState) Clone() ConversationState {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return out
}

// LastMessage returns the newest message, or nil for an empty conversation.
func (s ConversationState) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	m := s.Messages[len(s.Messages)-1]
	return &m
}
