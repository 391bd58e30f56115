package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/mission-control/internal/model"
)

const testTenant = "tenant-a"

// buildTree seeds a conversation with an active main path
// u1 -> a1 -> u2 -> a2 and returns the store, conversation ID, and message IDs.
func buildTree(t *testing.T) (*MemoryStore, string, []string) {
	t.Helper()
	ctx := context.Background()
	st := NewMemoryStore()
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	convID := "31111111-1111-7111-8111-111111111111"
	require.NoError(t, st.CreateConversation(ctx, &model.Conversation{
		ID:        convID,
		TenantID:  testTenant,
		Title:     "tree",
		CreatedAt: base,
		UpdatedAt: base,
	}))

	ids := []string{
		"41111111-1111-7111-8111-111111111111",
		"41111111-1111-7111-8111-111111111112",
		"41111111-1111-7111-8111-111111111113",
		"41111111-1111-7111-8111-111111111114",
	}
	roles := []model.Role{model.RoleUser, model.RoleAssistant, model.RoleUser, model.RoleAssistant}

	var parent *string
	for i, id := range ids {
		msg := &model.Message{
			ID:              id,
			ConversationID:  convID,
			TenantID:        testTenant,
			Role:            roles[i],
			Content:         "m" + id[:2],
			ParentMessageID: parent,
			IsActiveBranch:  true,
			CreatedAt:       base.Add(time.Duration(i+1) * time.Minute),
		}
		require.NoError(t, st.AppendMessage(ctx, msg))
		idCopy := id
		parent = &idCopy
	}
	return st, convID, ids
}

func activeIDs(t *testing.T, st *MemoryStore, convID string) map[string]bool {
	t.Helper()
	msgs, err := st.ActivePath(context.Background(), testTenant, convID)
	require.NoError(t, err)
	out := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		out[m.ID] = true
	}
	return out
}

func TestCreateBranchActivatesNewPath(t *testing.T) {
	ctx := context.Background()
	st, convID, ids := buildTree(t)

	// Edit u2: a sibling sharing u2's parent (a1) on a new branch.
	edited := &model.Message{
		ID:              "41111111-1111-7111-8111-111111111119",
		ConversationID:  convID,
		TenantID:        testTenant,
		Role:            model.RoleUser,
		Content:         "rephrased question",
		ParentMessageID: &ids[1],
		BranchName:      "edit-abc",
		IsActiveBranch:  true,
		CreatedAt:       time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, st.CreateBranch(ctx, edited))

	active := activeIDs(t, st, convID)
	assert.Equal(t, map[string]bool{
		ids[0]:    true,
		ids[1]:    true,
		edited.ID: true,
	}, active)

	// Old tail is deactivated.
	assert.False(t, active[ids[2]])
	assert.False(t, active[ids[3]])
}

func TestSwitchBranchActivatesExactTargetPath(t *testing.T) {
	ctx := context.Background()
	st, convID, ids := buildTree(t)

	edited := &model.Message{
		ID:              "41111111-1111-7111-8111-111111111119",
		ConversationID:  convID,
		TenantID:        testTenant,
		Role:            model.RoleUser,
		Content:         "rephrased",
		ParentMessageID: &ids[1],
		BranchName:      "edit-abc",
		IsActiveBranch:  true,
		CreatedAt:       time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, st.CreateBranch(ctx, edited))

	// Back to main: exactly the original path is active again.
	path, err := st.SwitchBranch(ctx, testTenant, convID, model.MainBranch)
	require.NoError(t, err)
	gotIDs := make([]string, len(path))
	for i, m := range path {
		gotIDs[i] = m.ID
	}
	assert.Equal(t, ids, gotIDs)

	active := activeIDs(t, st, convID)
	assert.Len(t, active, 4)
	assert.False(t, active[edited.ID])

	// And forward again to the edit branch.
	path, err = st.SwitchBranch(ctx, testTenant, convID, "edit-abc")
	require.NoError(t, err)
	require.Len(t, path, 3)
	assert.Equal(t, edited.ID, path[2].ID)
}

func TestSwitchBranchUnknownBranch(t *testing.T) {
	ctx := context.Background()
	st, convID, _ := buildTree(t)

	_, err := st.SwitchBranch(ctx, testTenant, convID, "no-such-branch")
	assert.ErrorIs(t, err, ErrBranchNotFound)

	// Failed switch must not disturb the active set.
	assert.Len(t, activeIDs(t, st, convID), 4)
}

func TestListBranchesMainFirst(t *testing.T) {
	ctx := context.Background()
	st, convID, ids := buildTree(t)

	edited := &model.Message{
		ID:              "41111111-1111-7111-8111-111111111119",
		ConversationID:  convID,
		TenantID:        testTenant,
		Role:            model.RoleUser,
		Content:         "rephrased",
		ParentMessageID: &ids[1],
		BranchName:      "edit-abc",
		IsActiveBranch:  true,
		CreatedAt:       time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, st.CreateBranch(ctx, edited))

	branches, err := st.ListBranches(ctx, testTenant, convID)
	require.NoError(t, err)
	require.Len(t, branches, 2)

	assert.Equal(t, model.MainBranch, branches[0].Name)
	assert.False(t, branches[0].IsActive)
	assert.Equal(t, "edit-abc", branches[1].Name)
	assert.True(t, branches[1].IsActive)
	assert.Equal(t, edited.ID, branches[1].LeafMessageID)
}

func TestBranchMessagesWalksToRoot(t *testing.T) {
	ctx := context.Background()
	st, convID, ids := buildTree(t)

	edited := &model.Message{
		ID:              "41111111-1111-7111-8111-111111111119",
		ConversationID:  convID,
		TenantID:        testTenant,
		Role:            model.RoleUser,
		Content:         "rephrased",
		ParentMessageID: &ids[1],
		BranchName:      "edit-abc",
		IsActiveBranch:  true,
		CreatedAt:       time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, st.CreateBranch(ctx, edited))

	path, err := st.BranchMessages(ctx, testTenant, convID, "edit-abc")
	require.NoError(t, err)
	require.Len(t, path, 3)
	assert.Equal(t, ids[0], path[0].ID)
	assert.Equal(t, ids[1], path[1].ID)
	assert.Equal(t, edited.ID, path[2].ID)
}

func TestAppendMessageBumpsConversation(t *testing.T) {
	ctx := context.Background()
	st, convID, _ := buildTree(t)

	conv, err := st.GetConversation(ctx, testTenant, convID)
	require.NoError(t, err)
	assert.Equal(t, 4, conv.MessageCount)
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	st, convID, ids := buildTree(t)

	_, err := st.GetConversation(ctx, "tenant-b", convID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.GetMessage(ctx, "tenant-b", ids[0])
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.ListMessages(ctx, "tenant-b", convID)
	assert.ErrorIs(t, err, ErrNotFound)
}
