package safety

import (
	"strings"
	"unicode/utf8"
)

// excerptAround returns a window of at most window runes centred on the match
// that starts at byte offset pos in lower. When lower and text have the same
// rune count the window is cut from text so the excerpt keeps original casing.
func excerptAround(text, lower string, pos, matchLen, window int) string {
	source := lower
	if utf8.RuneCountInString(text) == utf8.RuneCountInString(lower) {
		source = text
	}
	runes := []rune(source)
	if len(runes) == 0 {
		return ""
	}
	if window <= 0 || window >= len(runes) {
		return strings.TrimSpace(string(runes))
	}
	center := utf8.RuneCountInString(lower[:clamp(pos, 0, len(lower))]) +
		utf8.RuneCountInString(lower[clamp(pos, 0, len(lower)):clamp(pos+matchLen, 0, len(lower))])/2
	start := max(center-window/2, 0)
	end := start + window
	if end > len(runes) {
		end = len(runes)
		start = max(end-window, 0)
	}
	return strings.TrimSpace(string(runes[start:end]))
}

// leadingExcerpt returns the first n runes of text.
func leadingExcerpt(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) > n {
		runes = runes[:n]
	}
	return strings.TrimSpace(string(runes))
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
