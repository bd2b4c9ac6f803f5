package laborx

import (
	"html"
	"regexp"
	"strings"
)

var (
	lineBreakRegex = regexp.MustCompile(`(?i)<br\s*/?>`)
	paraCloseRegex = regexp.MustCompile(`(?i)</p>`)
	tagRegex       = regexp.MustCompile(`<[^>]+>`)
)

// NormalizeDescription turns the inner markup of a description block into
// plain text: <br> and </p> become newlines, other tags are dropped and
// entities decoded.
func NormalizeDescription(markup string) string {
	text := lineBreakRegex.ReplaceAllString(markup, "\n")
	text = paraCloseRegex.ReplaceAllString(text, "\n")
	text = tagRegex.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	return strings.TrimSpace(text)
}
