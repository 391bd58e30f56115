package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/mission-control/internal/llm"
	"github.com/capitalize-ai/mission-control/internal/model"
	"github.com/capitalize-ai/mission-control/internal/store"
	"github.com/capitalize-ai/mission-control/pkg/logger"
	"github.com/capitalize-ai/mission-control/pkg/metrics"
)

// TokenCallback is called for each token during streaming.
type TokenCallback func(token string, index int) error

// MessageService handles message and branch operations.
type MessageService struct {
	store         store.Store
	conversations *ConversationService
	personas      *PersonaService
	llmClient     llm.Client
	events        EventPublisher
	logger        *logger.Logger
}

// NewMessageService creates a new message service.
func NewMessageService(
	st store.Store,
	conversations *ConversationService,
	personas *PersonaService,
	llmClient llm.Client,
	events EventPublisher,
	log *logger.Logger,
) *MessageService {
	return &MessageService{
		store:         st,
		conversations: conversations,
		personas:      personas,
		llmClient:     llmClient,
		events:        events,
		logger:        log,
	}
}

func (s *MessageService) publish(ctx context.Context, event *model.Event) {
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

// activeLeaf returns the current active leaf and its branch name, or nil for
// an empty conversation.
func (s *MessageService) activeLeaf(ctx context.Context, tenantID, conversationID string) (*model.Message, error) {
	path, err := s.store.ActivePath(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	if len(path) == 0 {
		return nil, nil
	}
	leaf := path[len(path)-1]
	return &leaf, nil
}

// AppendUser appends a user message on the active path.
func (s *MessageService) AppendUser(ctx context.Context, tenantID, conversationID string, req *model.SendMessageRequest) (*model.Message, error) {
	conv, err := s.conversations.Get(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}

	parentID := req.ParentMessageID
	branchName := ""
	if parentID == nil {
		leaf, err := s.activeLeaf(ctx, tenantID, conversationID)
		if err != nil {
			return nil, err
		}
		if leaf != nil {
			parentID = &leaf.ID
			branchName = leaf.BranchName
		}
	} else {
		parent, err := s.store.GetMessage(ctx, tenantID, *parentID)
		if err != nil {
			return nil, fmt.Errorf("parent message: %w", err)
		}
		branchName = parent.BranchName
	}

	userMsg := &model.Message{
		ID:              uuid.Must(uuid.NewV7()).String(),
		ConversationID:  conversationID,
		TenantID:        tenantID,
		Role:            model.RoleUser,
		Content:         req.Content,
		ParentMessageID: parentID,
		BranchName:      branchName,
		IsActiveBranch:  true,
		CreatedAt:       time.Now(),
	}

	if err := s.store.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	s.conversations.EnsureTitle(ctx, conv, req.Content)

	metrics.MessagesTotal.WithLabelValues(tenantID, string(model.RoleUser)).Inc()
	s.publish(ctx, &model.Event{
		TenantID:       tenantID,
		ConversationID: conversationID,
		Type:           model.EventMessageCreated,
		Metadata:       map[string]any{"message_id": userMsg.ID, "role": string(model.RoleUser)},
	})

	return userMsg, nil
}

// completionRequest builds the LLM request from the active path and the
// conversation's persona.
func (s *MessageService) completionRequest(ctx context.Context, conv *model.Conversation, modelName string) (*llm.CompletionRequest, error) {
	path, err := s.store.ActivePath(ctx, conv.TenantID, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active path: %w", err)
	}

	chat := make([]llm.ChatMessage, 0, len(path))
	for _, msg := range path {
		if msg.Role != model.RoleUser && msg.Role != model.RoleAssistant {
			continue
		}
		chat = append(chat, llm.ChatMessage{Role: string(msg.Role), Content: msg.Content})
	}

	req := &llm.CompletionRequest{
		Model:     modelName,
		Messages:  chat,
		MaxTokens: 4096,
	}

	if conv.PersonaID != nil && s.personas != nil {
		persona, err := s.personas.Get(ctx, conv.TenantID, *conv.PersonaID)
		if err == nil {
			rendered, _ := RenderTemplate(persona.SystemPrompt, nil)
			req.System = rendered
			req.Temperature = persona.Temperature
			if req.Model == "" {
				req.Model = persona.DefaultModel
			}
		}
	}
	if req.Model == "" {
		req.Model = conv.ModelUsed
	}

	return req, nil
}

// storeAssistant persists an assistant reply under parent on the same branch.
func (s *MessageService) storeAssistant(ctx context.Context, tenantID, conversationID string, parent *model.Message, resp *llm.CompletionResponse) (*model.Message, error) {
	assistantMsg := &model.Message{
		ID:              uuid.Must(uuid.NewV7()).String(),
		ConversationID:  conversationID,
		TenantID:        tenantID,
		Role:            model.RoleAssistant,
		Content:         resp.Content,
		ParentMessageID: &parent.ID,
		BranchName:      parent.BranchName,
		IsActiveBranch:  true,
		Model:           &resp.Model,
		TokensIn:        &resp.TokensIn,
		TokensOut:       &resp.TokensOut,
		LatencyMs:       &resp.LatencyMs,
		StopReason:      &resp.StopReason,
		CreatedAt:       time.Now(),
	}

	if err := s.store.AppendMessage(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("failed to append assistant message: %w", err)
	}

	metrics.MessagesTotal.WithLabelValues(tenantID, string(model.RoleAssistant)).Inc()
	s.publish(ctx, &model.Event{
		TenantID:       tenantID,
		ConversationID: conversationID,
		Type:           model.EventMessageCreated,
		Metadata:       map[string]any{"message_id": assistantMsg.ID, "role": string(model.RoleAssistant)},
	})

	return assistantMsg, nil
}

// Send appends a user message and, when an LLM client is configured,
// generates the assistant reply.
func (s *MessageService) Send(ctx context.Context, tenantID, conversationID string, req *model.SendMessageRequest) (*model.SendMessageResponse, error) {
	userMsg, err := s.AppendUser(ctx, tenantID, conversationID, req)
	if err != nil {
		return nil, err
	}

	resp := &model.SendMessageResponse{UserMessage: userMsg}
	if s.llmClient == nil {
		return resp, nil
	}

	conv, err := s.conversations.Get(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}

	llmReq, err := s.completionRequest(ctx, conv, req.Model)
	if err != nil {
		return nil, err
	}

	completion, err := s.llmClient.Complete(ctx, llmReq)
	if err != nil {
		s.publish(ctx, &model.Event{
			TenantID:       tenantID,
			ConversationID: conversationID,
			Type:           model.EventError,
			Reason:         err.Error(),
		})
		return resp, fmt.Errorf("LLM completion failed: %w", err)
	}

	assistantMsg, err := s.storeAssistant(ctx, tenantID, conversationID, userMsg, completion)
	if err != nil {
		return resp, err
	}
	resp.AssistantMessage = assistantMsg
	return resp, nil
}

// SendWithStream appends a user message and streams the assistant reply
// token by token through onToken.
func (s *MessageService) SendWithStream(ctx context.Context, tenantID, conversationID string, req *model.SendMessageRequest, onToken TokenCallback) (*model.SendMessageResponse, error) {
	userMsg, err := s.AppendUser(ctx, tenantID, conversationID, req)
	if err != nil {
		return nil, err
	}

	resp := &model.SendMessageResponse{UserMessage: userMsg}
	if s.llmClient == nil {
		return resp, nil
	}

	conv, err := s.conversations.Get(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}

	llmReq, err := s.completionRequest(ctx, conv, req.Model)
	if err != nil {
		return nil, err
	}

	streamStart := time.Now()
	completion, err := s.llmClient.CompleteStream(ctx, llmReq, llm.StreamCallback(onToken))
	if err != nil {
		s.publish(ctx, &model.Event{
			TenantID:       tenantID,
			ConversationID: conversationID,
			Type:           model.EventError,
			Reason:         err.Error(),
		})
		metrics.RecordLLMStream(llmReq.Model, "error", time.Since(streamStart).Seconds(), 0, 0)
		return resp, fmt.Errorf("LLM stream failed: %w", err)
	}
	metrics.RecordLLMStream(completion.Model, "success", time.Since(streamStart).Seconds(), completion.TokensIn, completion.TokensOut)

	assistantMsg, err := s.storeAssistant(ctx, tenantID, conversationID, userMsg, completion)
	if err != nil {
		return resp, err
	}
	resp.AssistantMessage = assistantMsg
	return resp, nil
}

// ListMessages returns either the active path, a named branch's path, or the
// whole tree.
func (s *MessageService) ListMessages(ctx context.Context, tenantID, conversationID, branch string, all bool) (*model.ListMessagesResponse, error) {
	var (
		msgs []model.Message
		err  error
	)
	switch {
	case all:
		msgs, err = s.store.ListMessages(ctx, tenantID, conversationID)
	case branch != "":
		msgs, err = s.store.BranchMessages(ctx, tenantID, conversationID, branch)
	default:
		msgs, err = s.store.ActivePath(ctx, tenantID, conversationID)
	}
	if err != nil {
		return nil, err
	}

	return &model.ListMessagesResponse{
		Messages: msgs,
		Branch:   branch,
		Total:    len(msgs),
	}, nil
}

// ListBranches returns the virtual branch list for a conversation.
func (s *MessageService) ListBranches(ctx context.Context, tenantID, conversationID string) (*model.ListBranchesResponse, error) {
	branches, err := s.store.ListBranches(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	return &model.ListBranchesResponse{Branches: branches}, nil
}

// SwitchBranch atomically makes the named branch's root-to-leaf path the
// active one.
func (s *MessageService) SwitchBranch(ctx context.Context, tenantID, conversationID, branchName string) (*model.ListMessagesResponse, error) {
	path, err := s.store.SwitchBranch(ctx, tenantID, conversationID, branchName)
	if err != nil {
		metrics.BranchSwitchesTotal.WithLabelValues(tenantID, "error").Inc()
		return nil, err
	}

	metrics.BranchSwitchesTotal.WithLabelValues(tenantID, "success").Inc()
	s.publish(ctx, &model.Event{
		TenantID:       tenantID,
		ConversationID: conversationID,
		Type:           model.EventBranchSwitched,
		Metadata:       map[string]any{"branch": branchName},
	})

	return &model.ListMessagesResponse{
		Messages: path,
		Branch:   branchName,
		Total:    len(path),
	}, nil
}

// EditMessage creates a new branch from an edited message: a sibling of the
// original under the same parent, carrying the edited content under a fresh
// branch name, which becomes the active path.
func (s *MessageService) EditMessage(ctx context.Context, tenantID, messageID string, req *model.EditMessageRequest) (*model.Message, error) {
	original, err := s.store.GetMessage(ctx, tenantID, messageID)
	if err != nil {
		return nil, err
	}

	branchName := req.BranchName
	if branchName == "" {
		branchName = fmt.Sprintf("edit-%s", uuid.Must(uuid.NewV7()).String()[:8])
	}

	edited := &model.Message{
		ID:              uuid.Must(uuid.NewV7()).String(),
		ConversationID:  original.ConversationID,
		TenantID:        tenantID,
		Role:            original.Role,
		Content:         req.Content,
		ParentMessageID: original.ParentMessageID,
		BranchName:      branchName,
		IsActiveBranch:  true,
		CreatedAt:       time.Now(),
	}

	if err := s.store.CreateBranch(ctx, edited); err != nil {
		return nil, fmt.Errorf("failed to create branch: %w", err)
	}

	s.publish(ctx, &model.Event{
		TenantID:       tenantID,
		ConversationID: original.ConversationID,
		Type:           model.EventBranchCreated,
		Metadata:       map[string]any{"branch": branchName, "message_id": edited.ID},
	})

	s.logger.Info("branch created from edit",
		zap.String("conversation_id", original.ConversationID),
		zap.String("branch", branchName))

	return edited, nil
}
