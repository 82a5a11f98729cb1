// Package render turns stored message text and employee records into
// display structures. Nothing here produces markup; callers render the
// typed spans through html/template or a terminal styler.
package render

import (
	"strings"

	"github.com/ashureev/hr-resource-chat/internal/domain"
)

const emphasisDelim = "**"

// Span is a run of text inside a paragraph.
type Span struct {
	Text     string `json:"text"`
	Emphasis bool   `json:"emphasis,omitempty"`
}

// Paragraph is one display block.
type Paragraph struct {
	Spans []Span `json:"spans"`
}

// PlainText returns the paragraph text with emphasis markers removed.
func (p Paragraph) PlainText() string {
	var b strings.Builder
	for _, s := range p.Spans {
		b.WriteString(s.Text)
	}
	return b.String()
}

// RenderText splits text into paragraphs on newlines, dropping blank lines,
// and parses **...** runs into emphasis spans. The first ** pairs with the
// nearest following **; an unpaired ** is kept as literal text.
func RenderText(text string) []Paragraph {
	lines := strings.Split(text, "\n")
	paragraphs := make([]Paragraph, 0, len(lines))
	for _, line := range lines {
		if domain.IsBlank(line) {
			continue
		}
		paragraphs = append(paragraphs, Paragraph{Spans: parseInline(line)})
	}
	return paragraphs
}

func parseInline(line string) []Span {
	var spans []Span
	var plain strings.Builder

	flush := func() {
		if plain.Len() > 0 {
			spans = append(spans, Span{Text: plain.String()})
			plain.Reset()
		}
	}

	rest := line
	for {
		open := strings.Index(rest, emphasisDelim)
		if open < 0 {
			break
		}
		afterOpen := rest[open+len(emphasisDelim):]
		closeAt := strings.Index(afterOpen, emphasisDelim)
		if closeAt < 0 {
			break
		}
		plain.WriteString(rest[:open])
		flush()
		spans = append(spans, Span{Text: afterOpen[:closeAt], Emphasis: true})
		rest = afterOpen[closeAt+len(emphasisDelim):]
	}
	plain.WriteString(rest)
	flush()

	return spans
}
