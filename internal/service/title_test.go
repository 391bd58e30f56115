package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateTitleFromMessage(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "empty content",
			content:  "",
			expected: "New conversation",
		},
		{
			name:     "whitespace only",
			content:  "   \n\t  ",
			expected: "New conversation",
		},
		{
			name:     "short content passes through",
			content:  "Hello there",
			expected: "Hello there",
		},
		{
			name:     "whitespace collapsed",
			content:  "  Hello\n\n  there  ",
			expected: "Hello there",
		},
		{
			name:     "exactly sixty chars passes through",
			content:  strings.Repeat("a", 60),
			expected: strings.Repeat("a", 60),
		},
		{
			name:     "sentence boundary preferred",
			content:  "How do I configure the scheduler? I tried the docs and then gave up entirely.",
			expected: "How do I configure the scheduler?",
		},
		{
			name:     "word boundary when no sentence end",
			content:  "please explain the difference between buffered and unbuffered channels in detail",
			expected: "please explain the difference between buffered and",
		},
		{
			name:     "hard cut when no boundary past floor",
			content:  strings.Repeat("a", 100),
			expected: strings.Repeat("a", 60),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateTitleFromMessage(tt.content)
			assert.Equal(t, tt.expected, got)
			assert.LessOrEqual(t, len([]rune(got)), 60)
		})
	}
}

func TestGenerateTitleEarlySentenceIgnored(t *testing.T) {
	// A sentence boundary before the 20-char floor should not win.
	content := "Hi. Now explain how conversation branching works when you edit an old message"
	got := GenerateTitleFromMessage(content)
	assert.NotEqual(t, "Hi.", got)
	assert.GreaterOrEqual(t, len([]rune(got)), 20)
}
