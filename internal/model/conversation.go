// Package model defines data structures for the Mission Control service.
package model

import (
	"time"

	"gorm.io/gorm"
)

// Conversation represents a conversation thread.
type Conversation struct {
	ID        string         `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID  string         `json:"tenant_id" gorm:"index:idx_conversations_tenant"`
	UserID    *string        `json:"user_id,omitempty" gorm:"index"` // nil for anonymous conversations
	Title     string         `json:"title"`
	ModelUsed string         `json:"model_used,omitempty"`
	PersonaID *string        `json:"persona_id,omitempty" gorm:"type:uuid"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"index:idx_conversations_tenant"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	MessageCount int  `json:"message_count"`
	IsPinned     bool `json:"is_pinned"`
	IsArchived   bool `json:"is_archived"`

	Metadata map[string]string `json:"metadata,omitempty" gorm:"serializer:json"`

	LastMessage *Message `json:"last_message,omitempty" gorm:"-"`
}

// CreateConversationRequest is the request to create a new conversation.
type CreateConversationRequest struct {
	Title     string            `json:"title"`
	ModelUsed string            `json:"model_used,omitempty"`
	PersonaID *string           `json:"persona_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// UpdateConversationRequest is the request to update a conversation.
type UpdateConversationRequest struct {
	Title     string            `json:"title,omitempty"`
	ModelUsed string            `json:"model_used,omitempty"`
	PersonaID *string           `json:"persona_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ListConversationsFilter narrows a conversation listing.
type ListConversationsFilter struct {
	Pinned   *bool
	Archived *bool
	Limit    int
	Offset   int
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
	HasMore       bool           `json:"has_more"`
}
