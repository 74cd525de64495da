package validators

import (
	"strings"
	"unicode"
)

// CleanText trims free-form input, drops control characters other than
// newlines and tabs, and caps the result at maxRunes runes.
func CleanText(input string, maxRunes int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			return r
		}
		return -1
	}, strings.TrimSpace(input))
	cleaned = strings.TrimSpace(cleaned)
	if maxRunes <= 0 {
		return cleaned
	}
	if runes := []rune(cleaned); len(runes) > maxRunes {
		return strings.TrimSpace(string(runes[:maxRunes]))
	}
	return cleaned
}
