// ABOUTME: Markdown rendering for agent replies
// ABOUTME: GitHub-flavored goldmark with raw HTML left out

package chat

import (
	"bytes"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderMarkdown converts an agent reply to HTML. Raw HTML in the source is
// omitted, so the result is safe to embed.
func RenderMarkdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
