package textutil

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// PreviewLength is the rune budget for notification messages and thread previews.
const PreviewLength = 100

var strict = bluemonday.StrictPolicy()

// Preview strips markup, collapses whitespace and truncates to max runes.
func Preview(content string, max int) string {
	clean := strings.Join(strings.Fields(strict.Sanitize(content)), " ")
	return Truncate(clean, max)
}

// Truncate cuts s to at most max runes without splitting a multi-byte character.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
