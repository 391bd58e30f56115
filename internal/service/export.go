package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/capitalize-ai/mission-control/internal/model"
	"github.com/capitalize-ai/mission-control/internal/store"
	"github.com/capitalize-ai/mission-control/pkg/logger"
)

// ExportService produces and consumes conversation export documents.
type ExportService struct {
	store  store.Store
	logger *logger.Logger
}

// NewExportService creates a new export service.
func NewExportService(st store.Store, log *logger.Logger) *ExportService {
	return &ExportService{store: st, logger: log}
}

// ExportJSON dumps a conversation and its full message tree. Message order,
// roles, and branch flags survive a round trip through ImportJSON unchanged.
func (s *ExportService) ExportJSON(ctx context.Context, tenantID, conversationID string) (*model.ExportDocument, error) {
	conv, err := s.store.GetConversation(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}

	messages, err := s.store.ListMessages(ctx, tenantID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	return &model.ExportDocument{
		Version:      model.ExportVersion,
		ExportedAt:   time.Now().UTC(),
		Conversation: *conv,
		Messages:     messages,
	}, nil
}

// ExportMarkdown renders the active transcript as Markdown: a title heading
// followed by one ### heading per message in chronological order.
func (s *ExportService) ExportMarkdown(ctx context.Context, tenantID, conversationID string) (string, error) {
	conv, err := s.store.GetConversation(ctx, tenantID, conversationID)
	if err != nil {
		return "", err
	}

	messages, err := s.store.ActivePath(ctx, tenantID, conversationID)
	if err != nil {
		return "", fmt.Errorf("failed to load active path: %w", err)
	}

	var b strings.Builder
	title := conv.Title
	if title == "" {
		title = "Untitled conversation"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if conv.ModelUsed != "" {
		fmt.Fprintf(&b, "Model: %s\n\n", conv.ModelUsed)
	}

	for _, msg := range messages {
		fmt.Fprintf(&b, "### %s — %s\n\n", roleHeading(msg.Role), msg.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
		fmt.Fprintf(&b, "%s\n\n", strings.TrimRight(msg.Content, "\n"))
	}

	return b.String(), nil
}

func roleHeading(role model.Role) string {
	switch role {
	case model.RoleUser:
		return "User"
	case model.RoleAssistant:
		return "Assistant"
	case model.RoleSystem:
		return "System"
	case model.RoleTool:
		return "Tool"
	default:
		return string(role)
	}
}

// ImportJSON recreates a conversation from an export document under a new
// identity for the importing tenant. Message IDs are preserved so parent
// pointers and branch flags stay valid.
func (s *ExportService) ImportJSON(ctx context.Context, tenantID string, userID *string, raw []byte) (*model.Conversation, error) {
	var doc model.ExportDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid export document: %w", err)
	}
	if doc.Version != model.ExportVersion {
		return nil, fmt.Errorf("unsupported export version %d", doc.Version)
	}

	conv := doc.Conversation
	conv.TenantID = tenantID
	conv.UserID = userID
	conv.MessageCount = len(doc.Messages)

	messages := make([]model.Message, len(doc.Messages))
	for i, msg := range doc.Messages {
		msg.TenantID = tenantID
		msg.ConversationID = conv.ID
		messages[i] = msg
	}

	if err := s.store.ImportConversation(ctx, &conv, messages); err != nil {
		return nil, fmt.Errorf("failed to import conversation: %w", err)
	}
	return &conv, nil
}
