package middleware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateMessageContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"valid", "hello there", false},
		{"empty", "", true},
		{"at limit", strings.Repeat("a", 100000), false},
		{"over limit", strings.Repeat("a", 100001), true},
		{"invalid utf8", string([]byte{0xff, 0xfe}), true},
		{"multibyte", "読んでください", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessageContent(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateIDs(t *testing.T) {
	assert.NoError(t, ValidateConversationID("0195d4a2-9f7e-7cc0-a5ab-19f1f2f3f4f5"))
	assert.Error(t, ValidateConversationID("not-a-uuid"))
	assert.Error(t, ValidateConversationID(""))

	assert.NoError(t, ValidateMessageID("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
	assert.Error(t, ValidateMessageID("6ba7b810"))
}

func TestValidateTitle(t *testing.T) {
	assert.NoError(t, ValidateTitle(""))
	assert.NoError(t, ValidateTitle(strings.Repeat("t", 256)))
	assert.Error(t, ValidateTitle(strings.Repeat("t", 257)))
	assert.Error(t, ValidateTitle(string([]byte{0xc0})))
}

func TestValidateBranchName(t *testing.T) {
	assert.NoError(t, ValidateBranchName("main"))
	assert.NoError(t, ValidateBranchName("edit-0195d4a2"))
	assert.Error(t, ValidateBranchName(""))
	assert.Error(t, ValidateBranchName(strings.Repeat("b", 129)))
}

func TestValidatePersonaName(t *testing.T) {
	assert.NoError(t, ValidatePersonaName("Code Reviewer"))
	assert.Error(t, ValidatePersonaName(""))
	assert.Error(t, ValidatePersonaName(strings.Repeat("p", 129)))
}

func TestValidateSystemPrompt(t *testing.T) {
	assert.NoError(t, ValidateSystemPrompt("You are a careful reviewer."))
	assert.Error(t, ValidateSystemPrompt(""))
	assert.Error(t, ValidateSystemPrompt(strings.Repeat("s", 50001)))
}

func TestValidateTaskName(t *testing.T) {
	assert.NoError(t, ValidateTaskName("daily-digest"))
	assert.Error(t, ValidateTaskName(""))
	assert.Error(t, ValidateTaskName(strings.Repeat("n", 129)))
}

func TestValidateSpeechText(t *testing.T) {
	assert.NoError(t, ValidateSpeechText("Read this aloud."))
	assert.NoError(t, ValidateSpeechText(strings.Repeat("x", 5000)))
	assert.Error(t, ValidateSpeechText(""))
	assert.Error(t, ValidateSpeechText(strings.Repeat("x", 5001)))
}
