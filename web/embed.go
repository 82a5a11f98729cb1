// Package web embeds the chat page templates and static assets.
package web

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/ashureev/hr-resource-chat/internal/render"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page titles and copy shown by the chat page.
const (
	AppTitle         = "HR Resource Chatbot"
	InputPlaceholder = "Ask about HR resources (e.g., Find Python developers)"
	TypingText       = "Typing..."
)

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"isUser": func(m render.MessageView) bool { return m.Origin == "user" },
}).ParseFS(templateFS, "templates/*.html"))

// IndexData is the data of the chat page.
type IndexData struct {
	Title       string
	Placeholder string
	TypingText  string
	SessionID   string
	View        render.ConversationView
}

// TranscriptData is the data of the archived transcript page.
type TranscriptData struct {
	Title     string
	SessionID string
	Messages  []render.MessageView
}

// RenderIndex writes the chat page.
func RenderIndex(w io.Writer, data IndexData) error {
	return templates.ExecuteTemplate(w, "index.html", data)
}

// RenderTranscript writes the archived transcript page.
func RenderTranscript(w io.Writer, data TranscriptData) error {
	return templates.ExecuteTemplate(w, "transcript.html", data)
}

// StaticHandler serves the embedded static assets. Mount it under /static/.
func StaticHandler() http.Handler {
	subFS, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(subFS)))
}
