package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/mission-control/internal/model"
	"github.com/capitalize-ai/mission-control/internal/store"
	"github.com/capitalize-ai/mission-control/pkg/logger"
)

func seedConversation(t *testing.T, st store.Store, tenantID string) *model.Conversation {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	conv := &model.Conversation{
		ID:        "11111111-1111-7111-8111-111111111111",
		TenantID:  tenantID,
		Title:     "Debugging a deadlock",
		ModelUsed: "claude-3-5-sonnet-20241022",
		CreatedAt: base,
		UpdatedAt: base,
	}
	require.NoError(t, st.CreateConversation(ctx, conv))

	messages := []model.Message{
		{
			ID: "21111111-1111-7111-8111-111111111111", Role: model.RoleUser,
			Content: "My program deadlocks on shutdown.", IsActiveBranch: true,
			CreatedAt: base.Add(1 * time.Minute),
		},
		{
			ID: "21111111-1111-7111-8111-111111111112", Role: model.RoleAssistant,
			Content: "Which goroutines are blocked?", IsActiveBranch: true,
			CreatedAt: base.Add(2 * time.Minute),
		},
		{
			ID: "21111111-1111-7111-8111-111111111113", Role: model.RoleUser,
			Content: "The worker pool drain.", IsActiveBranch: true,
			CreatedAt: base.Add(3 * time.Minute),
		},
	}
	var parent *string
	for i := range messages {
		messages[i].ConversationID = conv.ID
		messages[i].TenantID = tenantID
		messages[i].ParentMessageID = parent
		require.NoError(t, st.AppendMessage(ctx, &messages[i]))
		id := messages[i].ID
		parent = &id
	}
	return conv
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := store.NewMemoryStore()
	conv := seedConversation(t, src, "tenant-a")

	exporter := NewExportService(src, logger.NewNop())
	doc, err := exporter.ExportJSON(ctx, "tenant-a", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExportVersion, doc.Version)
	require.Len(t, doc.Messages, 3)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	dst := store.NewMemoryStore()
	importer := NewExportService(dst, logger.NewNop())
	imported, err := importer.ImportJSON(ctx, "tenant-b", nil, raw)
	require.NoError(t, err)
	assert.Equal(t, "tenant-b", imported.TenantID)
	assert.Equal(t, 3, imported.MessageCount)

	got, err := dst.ListMessages(ctx, "tenant-b", imported.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)

	for i, msg := range got {
		assert.Equal(t, doc.Messages[i].ID, msg.ID)
		assert.Equal(t, doc.Messages[i].Role, msg.Role)
		assert.Equal(t, doc.Messages[i].Content, msg.Content)
		assert.Equal(t, doc.Messages[i].IsActiveBranch, msg.IsActiveBranch)
		assert.Equal(t, "tenant-b", msg.TenantID)
	}
}

func TestImportRejectsUnknownVersion(t *testing.T) {
	importer := NewExportService(store.NewMemoryStore(), logger.NewNop())
	_, err := importer.ImportJSON(context.Background(), "tenant-a", nil,
		[]byte(`{"version":99,"conversation":{"id":"x"},"messages":[]}`))
	assert.ErrorContains(t, err, "unsupported export version")
}

func TestImportRejectsMalformedJSON(t *testing.T) {
	importer := NewExportService(store.NewMemoryStore(), logger.NewNop())
	_, err := importer.ImportJSON(context.Background(), "tenant-a", nil, []byte(`{notjson`))
	assert.Error(t, err)
}

func TestExportMarkdown(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	conv := seedConversation(t, st, "tenant-a")

	exporter := NewExportService(st, logger.NewNop())
	md, err := exporter.ExportMarkdown(ctx, "tenant-a", conv.ID)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(md, "# Debugging a deadlock\n"))
	assert.Contains(t, md, "Model: claude-3-5-sonnet-20241022")

	// One heading per active message, chronological.
	assert.Equal(t, 3, strings.Count(md, "### "))
	userIdx := strings.Index(md, "### User")
	assistantIdx := strings.Index(md, "### Assistant")
	assert.Greater(t, assistantIdx, userIdx)
	assert.Contains(t, md, "2026-03-01 12:01:00 UTC")
	assert.Contains(t, md, "My program deadlocks on shutdown.")
}

func TestExportMarkdownSkipsInactiveBranches(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	conv := seedConversation(t, st, "tenant-a")

	// An abandoned sibling branch should not appear in the transcript.
	inactive := &model.Message{
		ID:             "21111111-1111-7111-8111-111111111119",
		ConversationID: conv.ID,
		TenantID:       "tenant-a",
		Role:           model.RoleUser,
		Content:        "edited question on another branch",
		BranchName:     "edit-alt",
		IsActiveBranch: false,
		CreatedAt:      time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC),
	}
	require.NoError(t, st.AppendMessage(ctx, inactive))

	exporter := NewExportService(st, logger.NewNop())
	md, err := exporter.ExportMarkdown(ctx, "tenant-a", conv.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(md, "### "))
	assert.NotContains(t, md, "edited question on another branch")
}
