package strings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{"trims whitespace", "  City Archive \n", 500, "City Archive"},
		{"keeps short values", "abc", 5, "abc"},
		{"cuts at rune limit", "abcdef", 3, "abc"},
		{"counts runes not bytes", "ééééé", 2, "éé"},
		{"no limit when max is zero", strings.Repeat("x", 600), 0, strings.Repeat("x", 600)},
		{"blank stays blank", "   ", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TrimTruncate(tt.input, tt.max))
		})
	}
}

func TestOptionalText(t *testing.T) {
	assert.Nil(t, OptionalText(" \t ", 200))

	got := OptionalText(" Jane Doe ", 200)
	require.NotNil(t, got)
	assert.Equal(t, "Jane Doe", *got)
}
