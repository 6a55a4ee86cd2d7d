// Package htmlsanitize reduces user-entered text, such as indicator names
// and descriptions, to plain text.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// strict allows no elements at all; script and style bodies are dropped.
var strict = sync.OnceValue(bluemonday.StrictPolicy)

// StripTags removes every HTML element from s and decodes entities, so the
// result is the text a browser would have shown.
func StripTags(s string) string {
	if !hasMarkup(s) {
		return s
	}
	return html.UnescapeString(strict().Sanitize(s))
}

// hasMarkup reports whether s could contain a tag.
func hasMarkup(s string) bool {
	i := strings.IndexByte(s, '<')
	return i >= 0 && strings.IndexByte(s[i:], '>') > 0
}
