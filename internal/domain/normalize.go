package domain

import (
	"strings"
	"unicode"
)

// NormalizeTitle prepares a film title for lookup keys:
//   - trims leading/trailing whitespace
//   - converts to lowercase
//   - collapses any whitespace run into one space
//
// Diacritics, hyphens, and apostrophes are preserved.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	title = strings.ToLower(title)

	var b strings.Builder
	b.Grow(len(title))
	prevSpace := false
	for _, r := range title {
		if unicode.IsSpace(r) {
			if prevSpace {
				continue
			}
			prevSpace = true
			r = ' '
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeDedupeKey canonicalizes a source URI so repeated uploads of the
// same film map to one record.
func NormalizeDedupeKey(uri string) string {
	key := strings.ToLower(strings.TrimSpace(uri))
	key = strings.TrimRight(key, "/")
	key = strings.TrimPrefix(key, "https://")
	key = strings.TrimPrefix(key, "http://")
	key = strings.TrimPrefix(key, "www.")
	return key
}
