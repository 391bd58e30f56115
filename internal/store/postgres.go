package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/capitalize-ai/mission-control/internal/model"
)

// PostgresStore is the production Store backed by Postgres through gorm.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore opens a connection and migrates the schema.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&model.Conversation{},
		&model.Message{},
		&model.Persona{},
		&model.ScheduledTask{},
		&model.TaskRun{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

var _ Store = (*PostgresStore)(nil)

func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	default:
		return err
	}
}

// CreateConversation inserts a conversation.
func (s *PostgresStore) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	return translateErr(s.db.WithContext(ctx).Create(conv).Error)
}

// GetConversation retrieves a conversation scoped to a tenant.
func (s *PostgresStore) GetConversation(ctx context.Context, tenantID, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&conv).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &conv, nil
}

// ListConversations lists a tenant's conversations, pinned first, newest
// activity next.
func (s *PostgresStore) ListConversations(ctx context.Context, tenantID string, filter model.ListConversationsFilter) ([]model.Conversation, int, error) {
	q := s.db.WithContext(ctx).Model(&model.Conversation{}).Where("tenant_id = ?", tenantID)
	if filter.Pinned != nil {
		q = q.Where("is_pinned = ?", *filter.Pinned)
	}
	if filter.Archived != nil {
		q = q.Where("is_archived = ?", *filter.Archived)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var convs []model.Conversation
	q = q.Order("is_pinned DESC, updated_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if err := q.Find(&convs).Error; err != nil {
		return nil, 0, err
	}

	return convs, int(total), nil
}

// UpdateConversation saves a conversation.
func (s *PostgresStore) UpdateConversation(ctx context.Context, conv *model.Conversation) error {
	res := s.db.WithContext(ctx).
		Where("tenant_id = ?", conv.TenantID).
		Save(conv)
	if res.Error != nil {
		return translateErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation soft deletes a conversation and removes its messages.
func (s *PostgresStore) DeleteConversation(ctx context.Context, tenantID, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND tenant_id = ?", id, tenantID).Delete(&model.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("conversation_id = ?", id).Delete(&model.Message{}).Error
	})
}

// AppendMessage inserts a message and bumps conversation counters atomically.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg *model.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Conversation{}).
			Where("id = ? AND tenant_id = ?", msg.ConversationID, msg.TenantID).
			Updates(map[string]any{
				"message_count": gorm.Expr("message_count + 1"),
				"updated_at":    time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return translateErr(tx.Create(msg).Error)
	})
}

// GetMessage retrieves a message scoped to a tenant.
func (s *PostgresStore) GetMessage(ctx context.Context, tenantID, id string) (*model.Message, error) {
	var msg model.Message
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&msg).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &msg, nil
}

// ListMessages returns every message in the conversation tree.
func (s *PostgresStore) ListMessages(ctx context.Context, tenantID, conversationID string) ([]model.Message, error) {
	if _, err := s.GetConversation(ctx, tenantID, conversationID); err != nil {
		return nil, err
	}

	var msgs []model.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND tenant_id = ?", conversationID, tenantID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// ActivePath returns the active root-to-leaf path in chronological order.
func (s *PostgresStore) ActivePath(ctx context.Context, tenantID, conversationID string) ([]model.Message, error) {
	if _, err := s.GetConversation(ctx, tenantID, conversationID); err != nil {
		return nil, err
	}

	var msgs []model.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND tenant_id = ? AND is_active_branch = ?", conversationID, tenantID, true).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// BranchMessages returns the root-to-leaf path of the named branch.
func (s *PostgresStore) BranchMessages(ctx context.Context, tenantID, conversationID, branchName string) ([]model.Message, error) {
	all, err := s.ListMessages(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}

	ptrs := messagePtrs(all)
	leaf := branchLeaf(ptrs, branchName)
	if leaf == nil {
		return nil, ErrBranchNotFound
	}

	path := pathToRoot(indexMessages(ptrs), leaf.ID)
	out := make([]model.Message, len(path))
	for i, p := range path {
		out[i] = *p
	}
	return out, nil
}

// ListBranches derives the virtual branch list for a conversation.
func (s *PostgresStore) ListBranches(ctx context.Context, tenantID, conversationID string) ([]model.BranchSummary, error) {
	all, err := s.ListMessages(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	return buildBranchSummaries(messagePtrs(all)), nil
}

// SwitchBranch re-points the active path inside one transaction. The
// conversation's messages are locked, the keep set is computed, and both flag
// updates commit together: a crash or error rolls everything back, so the
// one-active-path invariant holds at every commit point.
func (s *PostgresStore) SwitchBranch(ctx context.Context, tenantID, conversationID, branchName string) ([]model.Message, error) {
	var path []model.Message

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv model.Conversation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND tenant_id = ?", conversationID, tenantID).
			First(&conv).Error; err != nil {
			return translateErr(err)
		}

		var all []model.Message
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("conversation_id = ?", conversationID).
			Find(&all).Error; err != nil {
			return err
		}

		keep, leaf := activeKeepSet(messagePtrs(all), branchName)
		if leaf == nil {
			return ErrBranchNotFound
		}

		keepIDs := make([]string, 0, len(keep))
		for id := range keep {
			keepIDs = append(keepIDs, id)
		}

		if err := tx.Model(&model.Message{}).
			Where("conversation_id = ? AND id NOT IN ?", conversationID, keepIDs).
			Update("is_active_branch", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Message{}).
			Where("conversation_id = ? AND id IN ?", conversationID, keepIDs).
			Update("is_active_branch", true).Error; err != nil {
			return err
		}

		for _, m := range all {
			if keep[m.ID] {
				m.IsActiveBranch = true
				path = append(path, m)
			}
		}
		sortChronological(path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return path, nil
}

// CreateBranch inserts a branch-root message and activates its path in one
// transaction.
func (s *PostgresStore) CreateBranch(ctx context.Context, msg *model.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Conversation{}).
			Where("id = ? AND tenant_id = ?", msg.ConversationID, msg.TenantID).
			Updates(map[string]any{
				"message_count": gorm.Expr("message_count + 1"),
				"updated_at":    time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		if err := tx.Create(msg).Error; err != nil {
			return translateErr(err)
		}

		var all []model.Message
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("conversation_id = ?", msg.ConversationID).
			Find(&all).Error; err != nil {
			return err
		}

		keep := make(map[string]bool)
		for _, p := range pathToRoot(indexMessages(messagePtrs(all)), msg.ID) {
			keep[p.ID] = true
		}

		keepIDs := make([]string, 0, len(keep))
		for id := range keep {
			keepIDs = append(keepIDs, id)
		}

		if err := tx.Model(&model.Message{}).
			Where("conversation_id = ? AND id NOT IN ?", msg.ConversationID, keepIDs).
			Update("is_active_branch", false).Error; err != nil {
			return err
		}
		return tx.Model(&model.Message{}).
			Where("conversation_id = ? AND id IN ?", msg.ConversationID, keepIDs).
			Update("is_active_branch", true).Error
	})
}

// ImportConversation inserts a conversation with its messages atomically.
func (s *PostgresStore) ImportConversation(ctx context.Context, conv *model.Conversation, messages []model.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return translateErr(err)
		}
		if len(messages) == 0 {
			return nil
		}
		return translateErr(tx.CreateInBatches(messages, 256).Error)
	})
}

// CreatePersona inserts a persona.
func (s *PostgresStore) CreatePersona(ctx context.Context, p *model.Persona) error {
	return translateErr(s.db.WithContext(ctx).Create(p).Error)
}

// GetPersona retrieves a persona; builtins are visible to every tenant.
func (s *PostgresStore) GetPersona(ctx context.Context, tenantID, id string) (*model.Persona, error) {
	var p model.Persona
	err := s.db.WithContext(ctx).
		Where("id = ? AND (tenant_id = ? OR is_builtin = ?)", id, tenantID, true).
		First(&p).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &p, nil
}

// ListPersonas lists builtin personas plus the tenant's own.
func (s *PostgresStore) ListPersonas(ctx context.Context, tenantID string) ([]model.Persona, error) {
	var out []model.Persona
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? OR is_builtin = ?", tenantID, true).
		Order("is_builtin DESC, name ASC").
		Find(&out).Error
	return out, err
}

// UpdatePersona saves a tenant-owned persona.
func (s *PostgresStore) UpdatePersona(ctx context.Context, p *model.Persona) error {
	res := s.db.WithContext(ctx).Where("tenant_id = ?", p.TenantID).Save(p)
	if res.Error != nil {
		return translateErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePersona removes a tenant-owned persona; builtins cannot be deleted.
func (s *PostgresStore) DeletePersona(ctx context.Context, tenantID, id string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ? AND is_builtin = ?", id, tenantID, false).
		Delete(&model.Persona{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateTask inserts a scheduled task.
func (s *PostgresStore) CreateTask(ctx context.Context, t *model.ScheduledTask) error {
	return translateErr(s.db.WithContext(ctx).Create(t).Error)
}

// GetTask retrieves a scheduled task.
func (s *PostgresStore) GetTask(ctx context.Context, tenantID, id string) (*model.ScheduledTask, error) {
	var t model.ScheduledTask
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&t).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &t, nil
}

// ListTasks lists a tenant's scheduled tasks by name.
func (s *PostgresStore) ListTasks(ctx context.Context, tenantID string) ([]model.ScheduledTask, error) {
	var out []model.ScheduledTask
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name ASC").
		Find(&out).Error
	return out, err
}

// UpdateTask saves a scheduled task.
func (s *PostgresStore) UpdateTask(ctx context.Context, t *model.ScheduledTask) error {
	res := s.db.WithContext(ctx).Where("tenant_id = ?", t.TenantID).Save(t)
	if res.Error != nil {
		return translateErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTask soft deletes a scheduled task.
func (s *PostgresStore) DeleteTask(ctx context.Context, tenantID, id string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Delete(&model.ScheduledTask{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DueTasks returns enabled tasks due at or before now.
func (s *PostgresStore) DueTasks(ctx context.Context, now time.Time) ([]model.ScheduledTask, error) {
	var out []model.ScheduledTask
	err := s.db.WithContext(ctx).
		Where("enabled = ? AND next_run_at IS NOT NULL AND next_run_at <= ?", true, now).
		Order("next_run_at ASC").
		Find(&out).Error
	return out, err
}

// CreateTaskRun records the start of a task execution.
func (s *PostgresStore) CreateTaskRun(ctx context.Context, run *model.TaskRun) error {
	return translateErr(s.db.WithContext(ctx).Create(run).Error)
}

// UpdateTaskRun records the outcome of a task execution.
func (s *PostgresStore) UpdateTaskRun(ctx context.Context, run *model.TaskRun) error {
	res := s.db.WithContext(ctx).Save(run)
	if res.Error != nil {
		return translateErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTaskRuns returns a task's newest runs first.
func (s *PostgresStore) ListTaskRuns(ctx context.Context, tenantID, taskID string, limit int) ([]model.TaskRun, error) {
	q := s.db.WithContext(ctx).
		Where("task_id = ? AND tenant_id = ?", taskID, tenantID).
		Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []model.TaskRun
	err := q.Find(&out).Error
	return out, err
}
