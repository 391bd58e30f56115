package model

import (
	"encoding/json"
	"time"

	"github.com/jackc/pgtype"
	"gorm.io/gorm"
)

// SchedulePreset is a named schedule shorthand.
type SchedulePreset string

const (
	PresetHourly  SchedulePreset = "hourly"
	PresetDaily   SchedulePreset = "daily"
	PresetWeekly  SchedulePreset = "weekly"
	PresetMonthly SchedulePreset = "monthly"
)

// NotificationChannel selects where task-run outcomes are delivered.
type NotificationChannel string

const (
	NotifyNone    NotificationChannel = "none"
	NotifyWebhook NotificationChannel = "webhook"
	NotifyEvent   NotificationChannel = "event"
)

// TaskRunStatus is the outcome of a single task execution.
type TaskRunStatus string

const (
	RunStatusRunning   TaskRunStatus = "running"
	RunStatusSucceeded TaskRunStatus = "succeeded"
	RunStatusFailed    TaskRunStatus = "failed"
)

// RetryPolicy governs re-execution of failed task runs.
type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay"`
	Multiplier  float64       `json:"multiplier"`
}

// DefaultRetryPolicy is applied when a task specifies none.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   30 * time.Second,
	Multiplier:  2.0,
}

// ScheduledTask is a recurring assistant action: a prompt executed against a
// persona and model on a cron schedule or named preset.
type ScheduledTask struct {
	ID          string         `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID    string         `json:"tenant_id" gorm:"index"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Schedule is either a cron expression or a SchedulePreset name.
	Schedule string `json:"schedule"`
	Enabled  bool   `json:"enabled"`

	// Action
	Prompt    string  `json:"prompt"`
	PersonaID *string `json:"persona_id,omitempty" gorm:"type:uuid"`
	Model     string  `json:"model,omitempty"`

	// Payload carries arbitrary action parameters (webhook URL, render
	// variables) as JSONB.
	Payload pgtype.JSONB `json:"payload,omitempty" gorm:"type:jsonb"`

	Retry        RetryPolicy         `json:"retry" gorm:"embedded;embeddedPrefix:retry_"`
	Notification NotificationChannel `json:"notification"`

	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty" gorm:"index"`
}

// TaskRun records one execution of a scheduled task.
type TaskRun struct {
	ID        string        `json:"id" gorm:"type:uuid;primaryKey"`
	TaskID    string        `json:"task_id" gorm:"type:uuid;index"`
	TenantID  string        `json:"tenant_id" gorm:"index"`
	Status    TaskRunStatus `json:"status"`
	Attempt   int           `json:"attempt"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// DurationMs reports the run duration in milliseconds, 0 while running.
func (r *TaskRun) DurationMs() int64 {
	if r.EndedAt == nil {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt).Milliseconds()
}

// CreateTaskRequest is the request to create a scheduled task.
type CreateTaskRequest struct {
	Name         string              `json:"name"`
	Description  string              `json:"description,omitempty"`
	Schedule     string              `json:"schedule"`
	Prompt       string              `json:"prompt"`
	PersonaID    *string             `json:"persona_id,omitempty"`
	Model        string              `json:"model,omitempty"`
	Enabled      *bool               `json:"enabled,omitempty"`
	Retry        *RetryPolicy        `json:"retry,omitempty"`
	Notification NotificationChannel `json:"notification,omitempty"`
	Payload      json.RawMessage     `json:"payload,omitempty"`
}

// UpdateTaskRequest is the request to update a scheduled task. A payload of
// JSON null clears the stored payload; an absent payload leaves it unchanged.
type UpdateTaskRequest struct {
	Name         string              `json:"name,omitempty"`
	Description  string              `json:"description,omitempty"`
	Schedule     string              `json:"schedule,omitempty"`
	Prompt       string              `json:"prompt,omitempty"`
	PersonaID    *string             `json:"persona_id,omitempty"`
	Model        string              `json:"model,omitempty"`
	Enabled      *bool               `json:"enabled,omitempty"`
	Retry        *RetryPolicy        `json:"retry,omitempty"`
	Notification NotificationChannel `json:"notification,omitempty"`
	Payload      json.RawMessage     `json:"payload,omitempty"`
}

// ListTasksResponse is the response for listing scheduled tasks.
type ListTasksResponse struct {
	Tasks []ScheduledTask `json:"tasks"`
	Total int             `json:"total"`
}

// ListTaskRunsResponse is the response for a task's run history.
type ListTaskRunsResponse struct {
	Runs  []TaskRun `json:"runs"`
	Total int       `json:"total"`
}
