package formatter

import (
	"strings"

	"github.com/voxpost/voxpost/internal/domain"
)

// ComposeCaption renders post content into a single publishable caption:
// body text, then hashtags with a restored '#' prefix, then the link.
func ComposeCaption(c domain.Content) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(c.Text))

	if len(c.Hashtags) > 0 {
		sb.WriteString("\n\n")
		for i, tag := range c.Hashtags {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString("#")
			sb.WriteString(tag)
		}
	}

	if c.Link != "" {
		sb.WriteString("\n\n")
		sb.WriteString(c.Link)
	}

	return sb.String()
}

// TruncateRunes shortens s to at most limit runes, appending an ellipsis
// when truncation happened. A limit <= 0 means no limit.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}

// EscapeMarkdownV2 escapes special characters in Markdown V2 format
func EscapeMarkdownV2(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			sb.WriteRune('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
