package model

import (
	"time"
)

// EventType classifies domain events published to the event stream.
type EventType string

const (
	EventConversationCreated EventType = "conversation_created"
	EventConversationDeleted EventType = "conversation_deleted"
	EventMessageCreated      EventType = "message_created"
	EventBranchCreated       EventType = "branch_created"
	EventBranchSwitched      EventType = "branch_switched"
	EventTaskRunStarted      EventType = "task_run_started"
	EventTaskRunFinished     EventType = "task_run_finished"
	EventError               EventType = "error"
)

// Event is an immutable record of something that happened. Events feed the
// SSE live stream and the audit trail; they never carry mutable state.
type Event struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenant_id"`
	ConversationID string         `json:"conversation_id,omitempty"`
	TaskID         string         `json:"task_id,omitempty"`
	Type           EventType      `json:"type"`
	Reason         string         `json:"reason,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
