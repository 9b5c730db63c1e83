// Package textnorm normalizes free-form song text for search queries and
// export filenames.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

// Query normalizes a user search query: NFKD decomposition with combining
// marks stripped, punctuation removed, whitespace collapsed, lowercased.
func Query(text string) string {
	text = stripMarks(norm.NFKD.String(text))
	text = punctRegex.ReplaceAllString(text, " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")
	return strings.ToLower(strings.TrimSpace(text))
}

// Filename converts arbitrary track text into a safe filename fragment:
// whitespace runs become single underscores and path separators are
// dropped. Case and diacritics are preserved.
func Filename(text string) string {
	text = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return -1
		}
		return r
	}, text)
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(text), "_")
}

func stripMarks(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
