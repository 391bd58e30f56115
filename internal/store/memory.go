package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/capitalize-ai/mission-control/internal/model"
)

// MemoryStore is an in-process Store backed by maps. It is used by tests and
// when the server runs without a database DSN.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	messages      map[string]*model.Message
	personas      map[string]*model.Persona
	tasks         map[string]*model.ScheduledTask
	runs          map[string]*model.TaskRun
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*model.Conversation),
		messages:      make(map[string]*model.Message),
		personas:      make(map[string]*model.Persona),
		tasks:         make(map[string]*model.ScheduledTask),
		runs:          make(map[string]*model.TaskRun),
	}
}

var _ Store = (*MemoryStore)(nil)

// CreateConversation inserts a conversation.
func (s *MemoryStore) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[conv.ID]; exists {
		return ErrConflict
	}
	c := *conv
	s.conversations[conv.ID] = &c
	return nil
}

// GetConversation retrieves a conversation scoped to a tenant.
func (s *MemoryStore) GetConversation(ctx context.Context, tenantID, id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getConversationLocked(tenantID, id)
}

func (s *MemoryStore) getConversationLocked(tenantID, id string) (*model.Conversation, error) {
	conv, ok := s.conversations[id]
	if !ok || conv.TenantID != tenantID {
		return nil, ErrNotFound
	}
	c := *conv
	return &c, nil
}

// ListConversations lists a tenant's conversations, pinned first, newest
// activity next.
func (s *MemoryStore) ListConversations(ctx context.Context, tenantID string, filter model.ListConversationsFilter) ([]model.Conversation, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []model.Conversation
	for _, conv := range s.conversations {
		if conv.TenantID != tenantID {
			continue
		}
		if filter.Pinned != nil && conv.IsPinned != *filter.Pinned {
			continue
		}
		if filter.Archived != nil && conv.IsArchived != *filter.Archived {
			continue
		}
		items = append(items, *conv)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].IsPinned != items[j].IsPinned {
			return items[i].IsPinned
		}
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})

	total := len(items)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < total {
		end = start + filter.Limit
	}

	return items[start:end], total, nil
}

// UpdateConversation replaces a stored conversation.
func (s *MemoryStore) UpdateConversation(ctx context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.conversations[conv.ID]
	if !ok || existing.TenantID != conv.TenantID {
		return ErrNotFound
	}
	c := *conv
	s.conversations[conv.ID] = &c
	return nil
}

// DeleteConversation removes a conversation and its messages.
func (s *MemoryStore) DeleteConversation(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok || conv.TenantID != tenantID {
		return ErrNotFound
	}
	delete(s.conversations, id)
	for msgID, msg := range s.messages {
		if msg.ConversationID == id {
			delete(s.messages, msgID)
		}
	}
	return nil
}

// AppendMessage inserts a message and bumps the conversation counters.
func (s *MemoryStore) AppendMessage(ctx context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[msg.ConversationID]
	if !ok || conv.TenantID != msg.TenantID {
		return ErrNotFound
	}
	if _, exists := s.messages[msg.ID]; exists {
		return ErrConflict
	}

	m := *msg
	s.messages[msg.ID] = &m

	conv.MessageCount++
	conv.UpdatedAt = time.Now()
	return nil
}

// GetMessage retrieves a message scoped to a tenant.
func (s *MemoryStore) GetMessage(ctx context.Context, tenantID, id string) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok || msg.TenantID != tenantID {
		return nil, ErrNotFound
	}
	m := *msg
	return &m, nil
}

// ListMessages returns every message in the conversation tree.
func (s *MemoryStore) ListMessages(ctx context.Context, tenantID, conversationID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.getConversationLocked(tenantID, conversationID); err != nil {
		return nil, err
	}

	out := make([]model.Message, 0)
	for _, msg := range s.messages {
		if msg.ConversationID == conversationID {
			out = append(out, *msg)
		}
	}
	sortChronological(out)
	return out, nil
}

// ActivePath returns the active root-to-leaf path in chronological order.
func (s *MemoryStore) ActivePath(ctx context.Context, tenantID, conversationID string) ([]model.Message, error) {
	all, err := s.ListMessages(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}

	active := make([]model.Message, 0, len(all))
	for _, m := range all {
		if m.IsActiveBranch {
			active = append(active, m)
		}
	}
	return active, nil
}

// BranchMessages returns the root-to-leaf path of the named branch.
func (s *MemoryStore) BranchMessages(ctx context.Context, tenantID, conversationID, branchName string) ([]model.Message, error) {
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
func (s *MemoryStore) ListBranches(ctx context.Context, tenantID, conversationID string) ([]model.BranchSummary, error) {
	all, err := s.ListMessages(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	return buildBranchSummaries(messagePtrs(all)), nil
}

// SwitchBranch atomically re-points the active path. The keep set is computed
// first and applied under the lock in one pass, so concurrent readers never
// observe a half-switched tree.
func (s *MemoryStore) SwitchBranch(ctx context.Context, tenantID, conversationID, branchName string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getConversationLocked(tenantID, conversationID); err != nil {
		return nil, err
	}

	var ptrs []*model.Message
	for _, msg := range s.messages {
		if msg.ConversationID == conversationID {
			ptrs = append(ptrs, msg)
		}
	}

	keep, leaf := activeKeepSet(ptrs, branchName)
	if leaf == nil {
		return nil, ErrBranchNotFound
	}

	path := make([]model.Message, 0, len(keep))
	for _, msg := range ptrs {
		msg.IsActiveBranch = keep[msg.ID]
		if msg.IsActiveBranch {
			path = append(path, *msg)
		}
	}
	sortChronological(path)
	return path, nil
}

// CreateBranch inserts a branch-root message and activates its path.
func (s *MemoryStore) CreateBranch(ctx context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[msg.ConversationID]
	if !ok || conv.TenantID != msg.TenantID {
		return ErrNotFound
	}
	if _, exists := s.messages[msg.ID]; exists {
		return ErrConflict
	}

	m := *msg
	s.messages[msg.ID] = &m

	var ptrs []*model.Message
	for _, stored := range s.messages {
		if stored.ConversationID == msg.ConversationID {
			ptrs = append(ptrs, stored)
		}
	}

	keep := make(map[string]bool)
	for _, p := range pathToRoot(indexMessages(ptrs), msg.ID) {
		keep[p.ID] = true
	}
	for _, stored := range ptrs {
		stored.IsActiveBranch = keep[stored.ID]
	}

	conv.MessageCount++
	conv.UpdatedAt = time.Now()
	return nil
}

// ImportConversation inserts a conversation with its messages.
func (s *MemoryStore) ImportConversation(ctx context.Context, conv *model.Conversation, messages []model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[conv.ID]; exists {
		return ErrConflict
	}
	c := *conv
	s.conversations[conv.ID] = &c
	for i := range messages {
		m := messages[i]
		s.messages[m.ID] = &m
	}
	return nil
}

// CreatePersona inserts a persona.
func (s *MemoryStore) CreatePersona(ctx context.Context, p *model.Persona) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.personas[p.ID]; exists {
		return ErrConflict
	}
	cp := *p
	s.personas[p.ID] = &cp
	return nil
}

// GetPersona retrieves a persona. Builtin personas are visible to every
// tenant.
func (s *MemoryStore) GetPersona(ctx context.Context, tenantID, id string) (*model.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.personas[id]
	if !ok || (!p.IsBuiltin && p.TenantID != tenantID) {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// ListPersonas lists builtin personas plus the tenant's own.
func (s *MemoryStore) ListPersonas(ctx context.Context, tenantID string) ([]model.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Persona, 0)
	for _, p := range s.personas {
		if p.IsBuiltin || p.TenantID == tenantID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsBuiltin != out[j].IsBuiltin {
			return out[i].IsBuiltin
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// UpdatePersona replaces a stored persona.
func (s *MemoryStore) UpdatePersona(ctx context.Context, p *model.Persona) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.personas[p.ID]
	if !ok || existing.TenantID != p.TenantID {
		return ErrNotFound
	}
	cp := *p
	s.personas[p.ID] = &cp
	return nil
}

// DeletePersona removes a tenant-owned persona.
func (s *MemoryStore) DeletePersona(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.personas[id]
	if !ok || p.TenantID != tenantID || p.IsBuiltin {
		return ErrNotFound
	}
	delete(s.personas, id)
	return nil
}

// CreateTask inserts a scheduled task.
func (s *MemoryStore) CreateTask(ctx context.Context, t *model.ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.ID]; exists {
		return ErrConflict
	}
	ct := *t
	s.tasks[t.ID] = &ct
	return nil
}

// GetTask retrieves a scheduled task.
func (s *MemoryStore) GetTask(ctx context.Context, tenantID, id string) (*model.ScheduledTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok || t.TenantID != tenantID {
		return nil, ErrNotFound
	}
	ct := *t
	return &ct, nil
}

// ListTasks lists a tenant's scheduled tasks by name.
func (s *MemoryStore) ListTasks(ctx context.Context, tenantID string) ([]model.ScheduledTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ScheduledTask, 0)
	for _, t := range s.tasks {
		if t.TenantID == tenantID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UpdateTask replaces a stored task.
func (s *MemoryStore) UpdateTask(ctx context.Context, t *model.ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tasks[t.ID]
	if !ok || existing.TenantID != t.TenantID {
		return ErrNotFound
	}
	ct := *t
	s.tasks[t.ID] = &ct
	return nil
}

// DeleteTask removes a scheduled task and its runs.
func (s *MemoryStore) DeleteTask(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.TenantID != tenantID {
		return ErrNotFound
	}
	delete(s.tasks, id)
	for runID, run := range s.runs {
		if run.TaskID == id {
			delete(s.runs, runID)
		}
	}
	return nil
}

// DueTasks returns enabled tasks due at or before now.
func (s *MemoryStore) DueTasks(ctx context.Context, now time.Time) ([]model.ScheduledTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ScheduledTask, 0)
	for _, t := range s.tasks {
		if !t.Enabled || t.NextRunAt == nil {
			continue
		}
		if !t.NextRunAt.After(now) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRunAt.Before(*out[j].NextRunAt) })
	return out, nil
}

// CreateTaskRun records the start of a task execution.
func (s *MemoryStore) CreateTaskRun(ctx context.Context, run *model.TaskRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return ErrConflict
	}
	cr := *run
	s.runs[run.ID] = &cr
	return nil
}

// UpdateTaskRun records the outcome of a task execution.
func (s *MemoryStore) UpdateTaskRun(ctx context.Context, run *model.TaskRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return ErrNotFound
	}
	cr := *run
	s.runs[run.ID] = &cr
	return nil
}

// ListTaskRuns returns a task's newest runs first.
func (s *MemoryStore) ListTaskRuns(ctx context.Context, tenantID, taskID string, limit int) ([]model.TaskRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.TaskRun, 0)
	for _, run := range s.runs {
		if run.TaskID == taskID && run.TenantID == tenantID {
			out = append(out, *run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func messagePtrs(messages []model.Message) []*model.Message {
	ptrs := make([]*model.Message, len(messages))
	for i := range messages {
		ptrs[i] = &messages[i]
	}
	return ptrs
}
