package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"go.uber.org/zap"

	"github.com/capitalize-ai/mission-control/internal/edge"
	"github.com/capitalize-ai/mission-control/internal/llm"
	"github.com/capitalize-ai/mission-control/internal/model"
	"github.com/capitalize-ai/mission-control/internal/service"
	"github.com/capitalize-ai/mission-control/internal/store"
	"github.com/capitalize-ai/mission-control/pkg/logger"
	"github.com/capitalize-ai/mission-control/pkg/metrics"
)

// Scheduler owns scheduled task CRUD and the runner loop that executes due
// tasks.
type Scheduler struct {
	store    store.Store
	personas *service.PersonaService
	llm      llm.Client
	edge     *edge.Client
	events   service.EventPublisher
	notifier Notifier
	logger   *logger.Logger

	interval time.Duration

	// nowFn and sleepFn are replaceable in tests.
	nowFn   func() time.Time
	sleepFn func(ctx context.Context, d time.Duration) error
}

// New creates a scheduler.
func New(st store.Store, personas *service.PersonaService, llmClient llm.Client, edgeClient *edge.Client, events service.EventPublisher, notifier Notifier, log *logger.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Scheduler{
		store:    st,
		personas: personas,
		llm:      llmClient,
		edge:     edgeClient,
		events:   events,
		notifier: notifier,
		logger:   log,
		interval: interval,
		nowFn:    time.Now,
		sleepFn:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CreateTask validates and stores a new scheduled task.
func (s *Scheduler) CreateTask(ctx context.Context, tenantID string, req *model.CreateTaskRequest) (*model.ScheduledTask, error) {
	if err := ValidateSchedule(req.Schedule); err != nil {
		return nil, err
	}

	now := s.nowFn()
	next, err := NextRun(req.Schedule, now)
	if err != nil {
		return nil, err
	}

	retry := model.DefaultRetryPolicy
	if req.Retry != nil {
		retry = *req.Retry
	}
	notification := req.Notification
	if notification == "" {
		notification = model.NotifyNone
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	payload, err := payloadJSONB(req.Payload)
	if err != nil {
		return nil, err
	}

	task := &model.ScheduledTask{
		ID:           uuid.Must(uuid.NewV7()).String(),
		TenantID:     tenantID,
		Name:         req.Name,
		Description:  req.Description,
		Schedule:     req.Schedule,
		Enabled:      enabled,
		Prompt:       req.Prompt,
		PersonaID:    req.PersonaID,
		Model:        req.Model,
		Payload:      payload,
		Retry:        retry,
		Notification: notification,
		CreatedAt:    now,
		UpdatedAt:    now,
		NextRunAt:    &next,
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// GetTask retrieves a scheduled task.
func (s *Scheduler) GetTask(ctx context.Context, tenantID, id string) (*model.ScheduledTask, error) {
	return s.store.GetTask(ctx, tenantID, id)
}

// ListTasks lists a tenant's scheduled tasks.
func (s *Scheduler) ListTasks(ctx context.Context, tenantID string) (*model.ListTasksResponse, error) {
	tasks, err := s.store.ListTasks(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return &model.ListTasksResponse{Tasks: tasks, Total: len(tasks)}, nil
}

// UpdateTask updates a scheduled task, recomputing its next run when the
// schedule or enabled flag changes.
func (s *Scheduler) UpdateTask(ctx context.Context, tenantID, id string, req *model.UpdateTaskRequest) (*model.ScheduledTask, error) {
	task, err := s.store.GetTask(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		task.Name = req.Name
	}
	if req.Description != "" {
		task.Description = req.Description
	}
	if req.Schedule != "" && req.Schedule != task.Schedule {
		if err := ValidateSchedule(req.Schedule); err != nil {
			return nil, err
		}
		task.Schedule = req.Schedule
		next, err := NextRun(req.Schedule, s.nowFn())
		if err != nil {
			return nil, err
		}
		task.NextRunAt = &next
	}
	if req.Prompt != "" {
		task.Prompt = req.Prompt
	}
	if req.PersonaID != nil {
		task.PersonaID = req.PersonaID
	}
	if req.Model != "" {
		task.Model = req.Model
	}
	if req.Enabled != nil {
		task.Enabled = *req.Enabled
		if task.Enabled && task.NextRunAt == nil {
			next, err := NextRun(task.Schedule, s.nowFn())
			if err != nil {
				return nil, err
			}
			task.NextRunAt = &next
		}
	}
	if req.Retry != nil {
		task.Retry = *req.Retry
	}
	if req.Notification != "" {
		task.Notification = req.Notification
	}
	if req.Payload != nil {
		payload, err := payloadJSONB(req.Payload)
		if err != nil {
			return nil, err
		}
		task.Payload = payload
	}
	task.UpdatedAt = s.nowFn()

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// DeleteTask removes a scheduled task.
func (s *Scheduler) DeleteTask(ctx context.Context, tenantID, id string) error {
	return s.store.DeleteTask(ctx, tenantID, id)
}

// ListRuns returns a task's run history, newest first.
func (s *Scheduler) ListRuns(ctx context.Context, tenantID, taskID string, limit int) (*model.ListTaskRunsResponse, error) {
	if _, err := s.store.GetTask(ctx, tenantID, taskID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	runs, err := s.store.ListTaskRuns(ctx, tenantID, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return &model.ListTaskRunsResponse{Runs: runs, Total: len(runs)}, nil
}

// Run starts the runner loop and blocks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick executes every due task once.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.nowFn()
	due, err := s.store.DueTasks(ctx, now)
	if err != nil {
		s.logger.Error("failed to scan due tasks", zap.Error(err))
		return
	}

	for _, task := range due {
		t := task
		s.RunTask(ctx, &t)
	}
}

// RunTask executes one task immediately, applying its retry policy, and
// schedules its next run.
func (s *Scheduler) RunTask(ctx context.Context, task *model.ScheduledTask) *model.TaskRun {
	retry := task.Retry
	if retry.MaxAttempts <= 0 {
		retry = model.DefaultRetryPolicy
	}

	var run *model.TaskRun
	for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
		run = s.executeOnce(ctx, task, attempt)
		if run.Status == model.RunStatusSucceeded {
			break
		}
		if attempt == retry.MaxAttempts {
			break
		}
		if err := s.sleepFn(ctx, retryDelay(retry, attempt)); err != nil {
			break
		}
	}

	now := s.nowFn()
	task.LastRunAt = &now
	if next, err := NextRun(task.Schedule, now); err == nil {
		task.NextRunAt = &next
	} else {
		// Unparsable schedule after an edit: disable rather than spin.
		task.Enabled = false
		task.NextRunAt = nil
		s.logger.Error("disabling task with invalid schedule",
			zap.String("task_id", task.ID), zap.Error(err))
	}
	if err := s.store.UpdateTask(ctx, task); err != nil {
		s.logger.Error("failed to reschedule task", zap.String("task_id", task.ID), zap.Error(err))
	}

	s.notify(ctx, task, run)
	return run
}

// executeOnce performs a single attempt and records its run.
func (s *Scheduler) executeOnce(ctx context.Context, task *model.ScheduledTask, attempt int) *model.TaskRun {
	started := s.nowFn()
	run := &model.TaskRun{
		ID:        uuid.Must(uuid.NewV7()).String(),
		TaskID:    task.ID,
		TenantID:  task.TenantID,
		Status:    model.RunStatusRunning,
		Attempt:   attempt,
		StartedAt: started,
	}
	if err := s.store.CreateTaskRun(ctx, run); err != nil {
		s.logger.Error("failed to record task run", zap.String("task_id", task.ID), zap.Error(err))
	}
	s.publishEvent(ctx, task, model.EventTaskRunStarted, map[string]any{"run_id": run.ID, "attempt": attempt})

	output, err := s.executeAction(ctx, task)
	ended := s.nowFn()
	run.EndedAt = &ended

	if err != nil {
		run.Status = model.RunStatusFailed
		run.Error = err.Error()
		s.logger.Warn("task run failed",
			zap.String("task_id", task.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))
	} else {
		run.Status = model.RunStatusSucceeded
		run.Output = output
	}

	if err := s.store.UpdateTaskRun(ctx, run); err != nil {
		s.logger.Error("failed to update task run", zap.String("run_id", run.ID), zap.Error(err))
	}

	metrics.RecordTaskRun(string(run.Status), ended.Sub(started).Seconds())
	s.publishEvent(ctx, task, model.EventTaskRunFinished, map[string]any{
		"run_id": run.ID, "status": string(run.Status), "attempt": attempt,
	})
	return run
}

// executeAction runs the task's action: an edge function invocation when the
// payload names one, otherwise the prompt against the LLM client.
func (s *Scheduler) executeAction(ctx context.Context, task *model.ScheduledTask) (string, error) {
	if function, action, params := edgeAction(task); function != "" {
		return s.invokeEdge(ctx, function, action, params)
	}

	if s.llm == nil {
		return "", fmt.Errorf("no LLM client configured")
	}

	req := &llm.CompletionRequest{
		Model:     task.Model,
		Messages:  []llm.ChatMessage{{Role: string(model.RoleUser), Content: task.Prompt}},
		MaxTokens: 4096,
	}

	if task.PersonaID != nil && s.personas != nil {
		persona, err := s.personas.Get(ctx, task.TenantID, *task.PersonaID)
		if err == nil {
			rendered, _ := service.RenderTemplate(persona.SystemPrompt, nil)
			req.System = rendered
			req.Temperature = persona.Temperature
			if req.Model == "" {
				req.Model = persona.DefaultModel
			}
		}
	}

	resp, err := s.llm.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// payloadJSONB converts a request payload into a JSONB column value. The
// status is always set: Undefined JSONB fails driver.Valuer binding, so an
// absent or null payload persists as SQL NULL.
func payloadJSONB(raw json.RawMessage) (pgtype.JSONB, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return pgtype.JSONB{Status: pgtype.Null}, nil
	}
	if !json.Valid(raw) {
		return pgtype.JSONB{}, fmt.Errorf("payload is not valid JSON")
	}
	return pgtype.JSONB{Bytes: raw, Status: pgtype.Present}, nil
}

// edgeAction extracts an edge function invocation from the task payload, if
// one is configured under "edge_function".
func edgeAction(task *model.ScheduledTask) (function, action string, params map[string]any) {
	if task.Payload.Status != pgtype.Present {
		return "", "", nil
	}
	var payload map[string]any
	if err := json.Unmarshal(task.Payload.Bytes, &payload); err != nil {
		return "", "", nil
	}
	function, _ = payload["edge_function"].(string)
	if function == "" {
		return "", "", nil
	}
	action, _ = payload["action"].(string)
	params, _ = payload["params"].(map[string]any)
	return function, action, params
}

func (s *Scheduler) invokeEdge(ctx context.Context, function, action string, params map[string]any) (string, error) {
	if s.edge == nil {
		return "", fmt.Errorf("no edge client configured")
	}
	result, err := s.edge.Invoke(ctx, function, action, params)
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", fmt.Errorf("edge function %s failed: %s", function, result.Error)
	}
	return string(result.Data), nil
}

func (s *Scheduler) publishEvent(ctx context.Context, task *model.ScheduledTask, typ model.EventType, metadata map[string]any) {
	if s.events == nil {
		return
	}
	event := &model.Event{
		ID:        uuid.Must(uuid.NewV7()).String(),
		TenantID:  task.TenantID,
		TaskID:    task.ID,
		Type:      typ,
		Metadata:  metadata,
		CreatedAt: s.nowFn(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish task event", zap.Error(err))
	}
}

func (s *Scheduler) notify(ctx context.Context, task *model.ScheduledTask, run *model.TaskRun) {
	if run == nil {
		return
	}
	switch task.Notification {
	case model.NotifyWebhook:
		if s.notifier == nil {
			return
		}
		if err := s.notifier.NotifyRun(ctx, task, run); err != nil {
			s.logger.Warn("webhook notification failed",
				zap.String("task_id", task.ID), zap.Error(err))
		}
	case model.NotifyEvent:
		// Run events are already on the stream; nothing extra to do.
	}
}
