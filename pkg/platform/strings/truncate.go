// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
	"unicode/utf8"
)

// TrimTruncate trims surrounding whitespace and cuts the result to at most
// maxRunes runes. A non-positive maxRunes disables the limit.
//
// Example:
//
//	TrimTruncate("  Harbor at dusk  ", 6)
//	// Returns: "Harbor"
func TrimTruncate(value string, maxRunes int) string {
	trimmed := strings.TrimSpace(value)
	if maxRunes <= 0 || utf8.RuneCountInString(trimmed) <= maxRunes {
		return trimmed
	}
	runes := []rune(trimmed)
	return strings.TrimSpace(string(runes[:maxRunes]))
}

// OptionalText returns nil for blank input, otherwise a pointer to the
// trimmed and truncated value.
func OptionalText(value string, maxRunes int) *string {
	out := TrimTruncate(value, maxRunes)
	if out == "" {
		return nil
	}
	return &out
}
