// Package store provides persistence for conversations, messages, personas,
// and scheduled tasks. Two implementations exist: a Postgres store used in
// production and an in-memory store used in tests and for ephemeral mode.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/capitalize-ai/mission-control/internal/model"
)

var (
	// ErrNotFound is returned when an entity does not exist or is not
	// visible to the requesting tenant.
	ErrNotFound = errors.New("not found")

	// ErrBranchNotFound is returned when switching to a branch with no
	// messages.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrConflict is returned when an insert collides with an existing ID.
	ErrConflict = errors.New("already exists")
)

// Store is the persistence interface for the Mission Control domain.
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	GetConversation(ctx context.Context, tenantID, id string) (*model.Conversation, error)
	ListConversations(ctx context.Context, tenantID string, filter model.ListConversationsFilter) ([]model.Conversation, int, error)
	UpdateConversation(ctx context.Context, conv *model.Conversation) error
	DeleteConversation(ctx context.Context, tenantID, id string) error

	// Messages and branches
	//
	// AppendMessage inserts a message on the currently active path and bumps
	// the parent conversation's message count and timestamp atomically.
	AppendMessage(ctx context.Context, msg *model.Message) error
	GetMessage(ctx context.Context, tenantID, id string) (*model.Message, error)
	ListMessages(ctx context.Context, tenantID, conversationID string) ([]model.Message, error)
	ActivePath(ctx context.Context, tenantID, conversationID string) ([]model.Message, error)
	BranchMessages(ctx context.Context, tenantID, conversationID, branchName string) ([]model.Message, error)
	ListBranches(ctx context.Context, tenantID, conversationID string) ([]model.BranchSummary, error)

	// SwitchBranch atomically re-points the active path: after it returns,
	// exactly the root-to-leaf path of the named branch's leaf is active.
	SwitchBranch(ctx context.Context, tenantID, conversationID, branchName string) ([]model.Message, error)

	// CreateBranch atomically inserts msg (a sibling of an edited message,
	// carrying a fresh branch name) and makes its root-to-leaf path the
	// active one.
	CreateBranch(ctx context.Context, msg *model.Message) error

	// ImportConversation inserts a conversation and its messages in one
	// atomic operation, preserving IDs, order, and branch flags.
	ImportConversation(ctx context.Context, conv *model.Conversation, messages []model.Message) error

	// Personas
	CreatePersona(ctx context.Context, p *model.Persona) error
	GetPersona(ctx context.Context, tenantID, id string) (*model.Persona, error)
	ListPersonas(ctx context.Context, tenantID string) ([]model.Persona, error)
	UpdatePersona(ctx context.Context, p *model.Persona) error
	DeletePersona(ctx context.Context, tenantID, id string) error

	// Scheduled tasks
	CreateTask(ctx context.Context, t *model.ScheduledTask) error
	GetTask(ctx context.Context, tenantID, id string) (*model.ScheduledTask, error)
	ListTasks(ctx context.Context, tenantID string) ([]model.ScheduledTask, error)
	UpdateTask(ctx context.Context, t *model.ScheduledTask) error
	DeleteTask(ctx context.Context, tenantID, id string) error

	// DueTasks returns enabled tasks whose next run is at or before now.
	DueTasks(ctx context.Context, now time.Time) ([]model.ScheduledTask, error)

	CreateTaskRun(ctx context.Context, run *model.TaskRun) error
	UpdateTaskRun(ctx context.Context, run *model.TaskRun) error
	ListTaskRuns(ctx context.Context, tenantID, taskID string, limit int) ([]model.TaskRun, error)
}
