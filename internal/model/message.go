package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// MainBranch is the implicit branch for messages with no branch name.
const MainBranch = "main"

// Message represents a single message in a conversation tree. Messages form a
// parent-pointer tree; the contiguous root-to-leaf path with IsActiveBranch
// set is the transcript currently displayed and continued.
type Message struct {
	// Identity
	ID             string `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID string `json:"conversation_id" gorm:"type:uuid;index:idx_messages_conversation"`
	TenantID       string `json:"tenant_id" gorm:"index"`

	// Content
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Tree position
	ParentMessageID *string `json:"parent_message_id,omitempty" gorm:"type:uuid;index"`
	BranchName      string  `json:"branch_name,omitempty"`
	IsActiveBranch  bool    `json:"is_active_branch" gorm:"index:idx_messages_conversation"`

	// LLM metadata (nullable for non-assistant messages)
	Model      *string `json:"model,omitempty"`
	TokensIn   *int    `json:"tokens_in,omitempty"`
	TokensOut  *int    `json:"tokens_out,omitempty"`
	LatencyMs  *int64  `json:"latency_ms,omitempty"`
	StopReason *string `json:"stop_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Branch returns the message's branch name, defaulting to main.
func (m *Message) Branch() string {
	if m.BranchName == "" {
		return MainBranch
	}
	return m.BranchName
}

// SendMessageRequest is the request to append a user message.
type SendMessageRequest struct {
	Content         string  `json:"content"`
	Model           string  `json:"model,omitempty"`
	ParentMessageID *string `json:"parent_message_id,omitempty"`
	Stream          bool    `json:"stream"`
}

// SendMessageResponse is the response after sending a message.
type SendMessageResponse struct {
	UserMessage      *Message `json:"user_message"`
	AssistantMessage *Message `json:"assistant_message,omitempty"`
}

// EditMessageRequest is the request to edit a message, creating a new branch.
type EditMessageRequest struct {
	Content    string `json:"content"`
	BranchName string `json:"branch_name,omitempty"`
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	Branch   string    `json:"branch,omitempty"`
	Total    int       `json:"total"`
}

// TokenEvent represents a streaming token event.
type TokenEvent struct {
	Token string `json:"token"`
	Index int    `json:"index"`
}

// ErrorEvent represents a stream error event.
type ErrorEvent struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// HeartbeatEvent keeps SSE connections alive.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}
