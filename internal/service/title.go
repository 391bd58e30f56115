package service

import (
	"strings"
	"unicode/utf8"
)

const (
	maxTitleLen = 60
	minTitleLen = 20
)

// GenerateTitleFromMessage derives a conversation title from its first
// message. Short content passes through trimmed; long content is cut at a
// sentence or word boundary within the 60-char cap, never mid-word past the
// 20-char floor.
func GenerateTitleFromMessage(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	if title == "" {
		return "New conversation"
	}
	if utf8.RuneCountInString(title) <= maxTitleLen {
		return title
	}

	runes := []rune(title)
	window := string(runes[:maxTitleLen])

	// Prefer ending at a sentence boundary.
	if idx := strings.LastIndexAny(window, ".!?"); idx+1 >= minTitleLen {
		return strings.TrimSpace(window[:idx+1])
	}

	// Otherwise back up to the last word boundary, but not below the floor.
	if idx := strings.LastIndex(window, " "); idx >= minTitleLen {
		return strings.TrimSpace(window[:idx])
	}

	return strings.TrimSpace(window)
}
