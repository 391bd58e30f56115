package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgtype"

	"github.com/capitalize-ai/mission-control/internal/model"
)

// Notifier delivers task-run outcomes to an external channel.
type Notifier interface {
	NotifyRun(ctx context.Context, task *model.ScheduledTask, run *model.TaskRun) error
}

// WebhookNotifier POSTs a run summary to the URL stored in the task payload
// under "webhook_url".
type WebhookNotifier struct {
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier() *WebhookNotifier {
	return &WebhookNotifier{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	TaskID   string              `json:"task_id"`
	TaskName string              `json:"task_name"`
	RunID    string              `json:"run_id"`
	Status   model.TaskRunStatus `json:"status"`
	Attempt  int                 `json:"attempt"`
	Output   string              `json:"output,omitempty"`
	Error    string              `json:"error,omitempty"`
	EndedAt  *time.Time          `json:"ended_at,omitempty"`
}

// NotifyRun delivers the run outcome, retrying transient failures briefly.
func (n *WebhookNotifier) NotifyRun(ctx context.Context, task *model.ScheduledTask, run *model.TaskRun) error {
	url := webhookURL(task)
	if url == "" {
		return fmt.Errorf("task %s has webhook notification but no webhook_url in payload", task.ID)
	}

	body, err := json.Marshal(webhookPayload{
		TaskID:   task.ID,
		TaskName: task.Name,
		RunID:    run.ID,
		Status:   run.Status,
		Attempt:  run.Attempt,
		Output:   run.Output,
		Error:    run.Error,
		EndedAt:  run.EndedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("webhook returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("webhook returned %d", resp.StatusCode))
		}
		return nil
	}, policy)
}

func webhookURL(task *model.ScheduledTask) string {
	if task.Payload.Status != pgtype.Present {
		return ""
	}
	var payload map[string]any
	if err := json.Unmarshal(task.Payload.Bytes, &payload); err != nil {
		return ""
	}
	if url, ok := payload["webhook_url"].(string); ok {
		return url
	}
	return ""
}
