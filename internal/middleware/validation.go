package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if len(content) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > 100000 { // ~100KB limit
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateMessageID validates a message ID.
func ValidateMessageID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid message ID format")
	}
	return nil
}

// ValidateTitle validates a conversation title.
func ValidateTitle(title string) error {
	if len(title) > 256 {
		return errors.New("title exceeds maximum length")
	}
	if !utf8.ValidString(title) {
		return errors.New("title must be valid UTF-8")
	}
	return nil
}

// ValidateBranchName validates a branch name.
func ValidateBranchName(name string) error {
	if len(name) == 0 {
		return errors.New("branch name cannot be empty")
	}
	if len(name) > 128 {
		return errors.New("branch name exceeds maximum length")
	}
	if !utf8.ValidString(name) {
		return errors.New("branch name must be valid UTF-8")
	}
	return nil
}

// ValidatePersonaName validates a persona name.
func ValidatePersonaName(name string) error {
	if len(name) == 0 {
		return errors.New("persona name cannot be empty")
	}
	if len(name) > 128 {
		return errors.New("persona name exceeds maximum length")
	}
	return nil
}

// ValidateSystemPrompt validates a persona system prompt.
func ValidateSystemPrompt(prompt string) error {
	if len(prompt) == 0 {
		return errors.New("system prompt cannot be empty")
	}
	if len(prompt) > 50000 {
		return errors.New("system prompt exceeds maximum length")
	}
	if !utf8.ValidString(prompt) {
		return errors.New("system prompt must be valid UTF-8")
	}
	return nil
}

// ValidateTaskName validates a scheduled task name.
func ValidateTaskName(name string) error {
	if len(name) == 0 {
		return errors.New("task name cannot be empty")
	}
	if len(name) > 128 {
		return errors.New("task name exceeds maximum length")
	}
	return nil
}

// ValidateSpeechText validates text for speech synthesis.
func ValidateSpeechText(text string) error {
	if len(text) == 0 {
		return errors.New("text cannot be empty")
	}
	if len(text) > 5000 {
		return errors.New("text exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return errors.New("text must be valid UTF-8")
	}
	return nil
}
