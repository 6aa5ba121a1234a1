// Package markdown turns model output into an HTML fragment for the browser client.
package markdown

import (
	"bytes"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer converts markdown text to HTML. Implementations must be pure.
type Renderer interface {
	Render(text string) string
}

// Goldmark renders GitHub-flavoured markdown. Raw HTML in the input is omitted
// rather than passed through.
type Goldmark struct {
	md goldmark.Markdown
}

// New returns a GFM renderer (tables, strikethrough, autolinks, task lists).
func New() *Goldmark {
	return &Goldmark{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

func (g *Goldmark) Render(text string) string {
	var buf bytes.Buffer
	if err := g.md.Convert([]byte(text), &buf); err != nil {
		return "<p>" + html.EscapeString(text) + "</p>"
	}
	return buf.String()
}
