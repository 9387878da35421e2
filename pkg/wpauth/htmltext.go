package wpauth

import (
	"html"
	"strings"
)

// sanitizeHTML turns an HTML-formatted backend message into plain text:
// tags are stripped, entities decoded, and whitespace collapsed. WordPress
// error messages routinely arrive as "<strong>Error:</strong> ..." and must
// never reach the UI raw.
func sanitizeHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			// Block-level boundaries become spaces so words don't fuse
			b.WriteByte(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}

	out := html.UnescapeString(b.String())
	return strings.Join(strings.Fields(out), " ")
}
