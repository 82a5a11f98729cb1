package domain

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Origin identifies who authored a message.
type Origin string

const (
	// OriginUser marks a query typed by the user.
	OriginUser Origin = "user"
	// OriginAssistant marks a reply from the chatbot service.
	OriginAssistant Origin = "assistant"
)

// Valid reports whether o is a known origin.
func (o Origin) Valid() bool {
	return o == OriginUser || o == OriginAssistant
}

// Message is one immutable turn in a conversation.
type Message struct {
	ID        string    `json:"id"`
	Origin    Origin    `json:"origin"`
	Text      string    `json:"text"`
	Timestamp string    `json:"timestamp"` // hour:minute display string
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage builds a message stamped with at, formatted with layout for display.
func NewMessage(origin Origin, text string, at time.Time, layout string) Message {
	return Message{
		ID:        uuid.NewString(),
		Origin:    origin,
		Text:      text,
		Timestamp: at.Format(layout),
		CreatedAt: at,
	}
}

// IsBlank reports whether text holds only whitespace. The byte order mark
// U+FEFF counts as whitespace.
func IsBlank(text string) bool {
	return strings.TrimFunc(text, isBlankRune) == ""
}

func isBlankRune(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}
