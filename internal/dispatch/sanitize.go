package dispatch

import (
	"regexp"
	"strings"
	"unicode"
)

var markupRE = regexp.MustCompile(`<[^<>]*>`)

// Sanitize strips what the game embeds in UI strings but never wants translated:
// simple <tag> markup, control characters and zero-width characters. NBSP becomes
// a plain space. Newlines and tabs survive.
func Sanitize(text string) string {
	text = markupRE.ReplaceAllString(text, "")
	text = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\t':
			return r
		case '\u00a0':
			return ' '
		case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
			return -1
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(text)
}

// IsSentinel reports whether text carries nothing worth translating: blank, only
// ellipsis marks, or only question marks.
func IsSentinel(text string) bool {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	if compact == "" {
		return true
	}
	return onlyRunes(compact, ".…。・") || onlyRunes(compact, "?？")
}

func onlyRunes(text, allowed string) bool {
	for _, r := range text {
		if !strings.ContainsRune(allowed, r) {
			return false
		}
	}
	return true
}

const continuationMark = "..."

// splitContinuation separates a leading "..." (and the spaces after it) from the
// rest of the line, so the mark can be re-attached verbatim after translation.
func splitContinuation(text string) (prefix, body string) {
	if !strings.HasPrefix(text, continuationMark) {
		return "", text
	}
	rest := strings.TrimLeft(text[len(continuationMark):], " ")
	return text[:len(text)-len(rest)], rest
}
