package history

import (
	"strings"
	"unicode"
)

// DefaultPreviewLength is the rune length of list previews.
const DefaultPreviewLength = 60

// Preview renders text as a single display line of at most maxLen runes.
func Preview(text string, maxLen int) string {
	line := Sanitize(text)
	if line == "" {
		return "[empty]"
	}
	return Truncate(line, maxLen)
}

// Truncate ensures s is at most maxLen runes.
// If truncation is needed, "..." marks the cut.
func Truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	// Reserve 3 characters for "..."
	if maxLen < 3 {
		return strings.Repeat(".", maxLen)
	}

	return string(runes[:maxLen-3]) + "..."
}

// Sanitize removes control characters and collapses whitespace.
// This keeps previews safe for display in terminals.
func Sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)

	return strings.Join(strings.Fields(s), " ")
}
