// Package service provides business logic for the Mission Control API.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/mission-control/internal/model"
	"github.com/capitalize-ai/mission-control/internal/store"
	"github.com/capitalize-ai/mission-control/pkg/logger"
	"github.com/capitalize-ai/mission-control/pkg/metrics"
)

// EventPublisher publishes domain events. Satisfied by nats.EventBus; nil-safe
// wrapper used where NATS is optional.
type EventPublisher interface {
	Publish(ctx context.Context, event *model.Event) error
}

// ConversationService handles conversation operations.
type ConversationService struct {
	store  store.Store
	events EventPublisher
	logger *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(st store.Store, events EventPublisher, log *logger.Logger) *ConversationService {
	return &ConversationService{
		store:  st,
		events: events,
		logger: log,
	}
}

func (s *ConversationService) publish(ctx context.Context, event *model.Event) {
	if s.events == nil {
		return
	}
	event.ID = uuid.Must(uuid.NewV7()).String()
	event.CreatedAt = time.Now()
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// Create creates a new conversation. An empty title is derived later from the
// first message.
func (s *ConversationService) Create(ctx context.Context, tenantID string, userID *string, req *model.CreateConversationRequest) (*model.Conversation, error) {
	now := time.Now()

	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		TenantID:  tenantID,
		UserID:    userID,
		Title:     req.Title,
		ModelUsed: req.ModelUsed,
		PersonaID: req.PersonaID,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  req.Metadata,
	}

	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	metrics.ConversationsTotal.WithLabelValues(tenantID).Inc()
	s.publish(ctx, &model.Event{
		TenantID:       tenantID,
		ConversationID: conv.ID,
		Type:           model.EventConversationCreated,
	})

	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("tenant_id", tenantID))

	return conv, nil
}

// Get retrieves a conversation by ID.
func (s *ConversationService) Get(ctx context.Context, tenantID, conversationID string) (*model.Conversation, error) {
	return s.store.GetConversation(ctx, tenantID, conversationID)
}

// List retrieves conversations for a tenant.
func (s *ConversationService) List(ctx context.Context, tenantID string, filter model.ListConversationsFilter) (*model.ListConversationsResponse, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	convs, total, err := s.store.ListConversations(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	return &model.ListConversationsResponse{
		Conversations: convs,
		Total:         total,
		HasMore:       filter.Offset+len(convs) < total,
	}, nil
}

// Update updates a conversation's mutable fields.
func (s *ConversationService) Update(ctx context.Context, tenantID, conversationID string, req *model.UpdateConversationRequest) (*model.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		conv.Title = req.Title
	}
	if req.ModelUsed != "" {
		conv.ModelUsed = req.ModelUsed
	}
	if req.PersonaID != nil {
		conv.PersonaID = req.PersonaID
	}
	if req.Metadata != nil {
		conv.Metadata = req.Metadata
	}
	conv.UpdatedAt = time.Now()

	if err := s.store.UpdateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	return conv, nil
}

// SetPinned pins or unpins a conversation.
func (s *ConversationService) SetPinned(ctx context.Context, tenantID, conversationID string, pinned bool) (*model.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	conv.IsPinned = pinned
	conv.UpdatedAt = time.Now()
	if err := s.store.UpdateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	return conv, nil
}

// SetArchived archives or unarchives a conversation.
func (s *ConversationService) SetArchived(ctx context.Context, tenantID, conversationID string, archived bool) (*model.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	conv.IsArchived = archived
	conv.UpdatedAt = time.Now()
	if err := s.store.UpdateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	return conv, nil
}

// Delete deletes a conversation and its messages.
func (s *ConversationService) Delete(ctx context.Context, tenantID, conversationID string) error {
	if err := s.store.DeleteConversation(ctx, tenantID, conversationID); err != nil {
		return err
	}
	s.publish(ctx, &model.Event{
		TenantID:       tenantID,
		ConversationID: conversationID,
		Type:           model.EventConversationDeleted,
	})
	return nil
}

// EnsureTitle backfills an empty conversation title from its first message.
func (s *ConversationService) EnsureTitle(ctx context.Context, conv *model.Conversation, firstMessage string) {
	if conv.Title != "" {
		return
	}
	conv.Title = GenerateTitleFromMessage(firstMessage)
	if err := s.store.UpdateConversation(ctx, conv); err != nil {
		s.logger.Warn("failed to backfill conversation title",
			zap.String("conversation_id", conv.ID), zap.Error(err))
	}
}
