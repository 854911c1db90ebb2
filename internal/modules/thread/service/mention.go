package service

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

const maxMentions = 10

var mentionPattern = regexp.MustCompile(`(?:^|[^A-Za-z0-9_@])@([A-Za-z0-9_]{3,30})\b`)

// ParseMentions extracts distinct lowercased @usernames in order of appearance.
func ParseMentions(content string) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	names := lo.Uniq(lo.Map(matches, func(m []string, _ int) string { return strings.ToLower(m[1]) }))
	if len(names) > maxMentions {
		names = names[:maxMentions]
	}
	return names
}
