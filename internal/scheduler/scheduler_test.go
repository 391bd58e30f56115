package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/mission-control/internal/edge"
	"github.com/capitalize-ai/mission-control/internal/llm"
	"github.com/capitalize-ai/mission-control/internal/model"
	"github.com/capitalize-ai/mission-control/internal/store"
	"github.com/capitalize-ai/mission-control/pkg/logger"
)

// fakeLLM fails a configured number of times before succeeding.
type fakeLLM struct {
	failures int
	calls    int
}

func (f *fakeLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("provider overloaded")
	}
	return &llm.CompletionResponse{Content: "done", Model: req.Model}, nil
}

func (f *fakeLLM) CompleteStream(ctx context.Context, req *llm.CompletionRequest, cb llm.StreamCallback) (*llm.CompletionResponse, error) {
	return f.Complete(ctx, req)
}

func (f *fakeLLM) Name() string     { return "fake" }
func (f *fakeLLM) Models() []string { return []string{"fake-model"} }

func newTestScheduler(t *testing.T, client llm.Client) (*Scheduler, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	s := New(st, nil, client, nil, nil, nil, logger.NewNop(), time.Minute)
	s.nowFn = func() time.Time { return time.Date(2026, 4, 2, 8, 15, 0, 0, time.UTC) }
	s.sleepFn = func(ctx context.Context, d time.Duration) error { return nil }
	return s, st
}

func TestCreateTaskComputesNextRun(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeLLM{})
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "tenant-a", &model.CreateTaskRequest{
		Name:     "daily digest",
		Schedule: "daily",
		Prompt:   "Summarize yesterday's activity",
	})
	require.NoError(t, err)

	assert.True(t, task.Enabled)
	assert.Equal(t, model.DefaultRetryPolicy, task.Retry)
	assert.Equal(t, model.NotifyNone, task.Notification)
	require.NotNil(t, task.NextRunAt)
	assert.Equal(t, time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC), *task.NextRunAt)
}

func TestCreateTaskRejectsBadSchedule(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeLLM{})

	_, err := s.CreateTask(context.Background(), "tenant-a", &model.CreateTaskRequest{
		Name:     "broken",
		Schedule: "whenever",
		Prompt:   "x",
	})
	assert.Error(t, err)
}

func TestRunTaskSucceedsFirstAttempt(t *testing.T) {
	client := &fakeLLM{}
	s, st := newTestScheduler(t, client)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "tenant-a", &model.CreateTaskRequest{
		Name:     "hourly check",
		Schedule: "hourly",
		Prompt:   "check things",
		Model:    "fake-model",
	})
	require.NoError(t, err)

	run := s.RunTask(ctx, task)
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusSucceeded, run.Status)
	assert.Equal(t, 1, run.Attempt)
	assert.Equal(t, "done", run.Output)
	assert.Equal(t, 1, client.calls)

	// The task was rescheduled.
	stored, err := st.GetTask(ctx, "tenant-a", task.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastRunAt)
	require.NotNil(t, stored.NextRunAt)
	assert.Equal(t, time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC), *stored.NextRunAt)
}

func TestRunTaskRetriesUntilSuccess(t *testing.T) {
	client := &fakeLLM{failures: 2}
	s, st := newTestScheduler(t, client)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "tenant-a", &model.CreateTaskRequest{
		Name:     "flaky",
		Schedule: "hourly",
		Prompt:   "try hard",
		Retry:    &model.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2},
	})
	require.NoError(t, err)

	run := s.RunTask(ctx, task)
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusSucceeded, run.Status)
	assert.Equal(t, 3, run.Attempt)
	assert.Equal(t, 3, client.calls)

	// Every attempt left a run record, newest first.
	runs, err := st.ListTaskRuns(ctx, "tenant-a", task.ID, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestRunTaskExhaustsRetries(t *testing.T) {
	client := &fakeLLM{failures: 10}
	s, _ := newTestScheduler(t, client)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "tenant-a", &model.CreateTaskRequest{
		Name:     "doomed",
		Schedule: "hourly",
		Prompt:   "fail",
		Retry:    &model.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, Multiplier: 2},
	})
	require.NoError(t, err)

	run := s.RunTask(ctx, task)
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Equal(t, "provider overloaded", run.Error)
	assert.Equal(t, 2, client.calls)
}

func TestUpdateTaskRecomputesNextRunOnScheduleChange(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeLLM{})
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "tenant-a", &model.CreateTaskRequest{
		Name:     "digest",
		Schedule: "daily",
		Prompt:   "summarize",
	})
	require.NoError(t, err)

	updated, err := s.UpdateTask(ctx, "tenant-a", task.ID, &model.UpdateTaskRequest{
		Schedule: "hourly",
	})
	require.NoError(t, err)
	require.NotNil(t, updated.NextRunAt)
	assert.Equal(t, time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC), *updated.NextRunAt)
}

func TestCreateTaskPayloadBindsAsColumnValue(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeLLM{})
	ctx := context.Background()

	// Without a payload the JSONB column must carry an explicit SQL NULL;
	// an Undefined status fails driver.Valuer binding on insert.
	task, err := s.CreateTask(ctx, "tenant-a", &model.CreateTaskRequest{
		Name: "no payload", Schedule: "daily", Prompt: "x",
	})
	require.NoError(t, err)
	assert.Equal(t, pgtype.Null, task.Payload.Status)
	_, err = task.Payload.Value()
	assert.NoError(t, err)

	task, err = s.CreateTask(ctx, "tenant-a", &model.CreateTaskRequest{
		Name: "with payload", Schedule: "daily", Prompt: "x",
		Payload: json.RawMessage(`{"webhook_url":"https://example.com/hook"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, pgtype.Present, task.Payload.Status)
	_, err = task.Payload.Value()
	assert.NoError(t, err)
	assert.JSONEq(t, `{"webhook_url":"https://example.com/hook"}`, string(task.Payload.Bytes))
}

func TestCreateTaskRejectsInvalidPayload(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeLLM{})

	_, err := s.CreateTask(context.Background(), "tenant-a", &model.CreateTaskRequest{
		Name: "bad", Schedule: "daily", Prompt: "x",
		Payload: json.RawMessage(`{"unterminated`),
	})
	assert.Error(t, err)
}

func TestUpdateTaskSetsAndClearsPayload(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeLLM{})
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "tenant-a", &model.CreateTaskRequest{
		Name: "digest", Schedule: "daily", Prompt: "x",
	})
	require.NoError(t, err)

	updated, err := s.UpdateTask(ctx, "tenant-a", task.ID, &model.UpdateTaskRequest{
		Payload: json.RawMessage(`{"edge_function":"digest"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, pgtype.Present, updated.Payload.Status)

	cleared, err := s.UpdateTask(ctx, "tenant-a", task.ID, &model.UpdateTaskRequest{
		Payload: json.RawMessage(`null`),
	})
	require.NoError(t, err)
	assert.Equal(t, pgtype.Null, cleared.Payload.Status)
}

func TestRunTaskInvokesEdgeFunction(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(edge.Result{Success: true, Data: json.RawMessage(`{"sent":true}`)})
	}))
	defer server.Close()

	llmClient := &fakeLLM{}
	st := store.NewMemoryStore()
	edgeClient := edge.NewClient(server.URL, "edge-token", 2, logger.NewNop())
	s := New(st, nil, llmClient, edgeClient, nil, nil, logger.NewNop(), time.Minute)
	s.nowFn = func() time.Time { return time.Date(2026, 4, 2, 8, 15, 0, 0, time.UTC) }
	s.sleepFn = func(ctx context.Context, d time.Duration) error { return nil }
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "tenant-a", &model.CreateTaskRequest{
		Name: "send digest", Schedule: "daily", Prompt: "unused",
		Payload: json.RawMessage(`{"edge_function":"digest","action":"send","params":{"channel":"email"}}`),
	})
	require.NoError(t, err)

	run := s.RunTask(ctx, task)
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusSucceeded, run.Status)
	assert.JSONEq(t, `{"sent":true}`, run.Output)

	assert.Equal(t, "/functions/v1/digest", gotPath)
	assert.Equal(t, "send", gotBody["action"])
	assert.Equal(t, map[string]any{"channel": "email"}, gotBody["params"])
	assert.Zero(t, llmClient.calls, "edge tasks must not prompt the LLM")
}

func TestRunTaskSendsWebhookNotification(t *testing.T) {
	var gotHook webhookPayload
	var hookCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hookCalls.Add(1)
		json.NewDecoder(r.Body).Decode(&gotHook)
	}))
	defer server.Close()

	llmClient := &fakeLLM{}
	st := store.NewMemoryStore()
	s := New(st, nil, llmClient, nil, nil, NewWebhookNotifier(), logger.NewNop(), time.Minute)
	s.nowFn = func() time.Time { return time.Date(2026, 4, 2, 8, 15, 0, 0, time.UTC) }
	s.sleepFn = func(ctx context.Context, d time.Duration) error { return nil }
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "tenant-a", &model.CreateTaskRequest{
		Name: "watched", Schedule: "hourly", Prompt: "check",
		Notification: model.NotifyWebhook,
		Payload:      json.RawMessage(`{"webhook_url":"` + server.URL + `"}`),
	})
	require.NoError(t, err)

	run := s.RunTask(ctx, task)
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusSucceeded, run.Status)

	assert.Equal(t, int32(1), hookCalls.Load())
	assert.Equal(t, task.ID, gotHook.TaskID)
	assert.Equal(t, run.ID, gotHook.RunID)
	assert.Equal(t, model.RunStatusSucceeded, gotHook.Status)
}

func TestDueTasksPicksUpOverdueOnly(t *testing.T) {
	s, st := newTestScheduler(t, &fakeLLM{})
	ctx := context.Background()

	overdue, err := s.CreateTask(ctx, "tenant-a", &model.CreateTaskRequest{
		Name: "overdue", Schedule: "hourly", Prompt: "x",
	})
	require.NoError(t, err)
	past := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	overdue.NextRunAt = &past
	require.NoError(t, st.UpdateTask(ctx, overdue))

	_, err = s.CreateTask(ctx, "tenant-a", &model.CreateTaskRequest{
		Name: "future", Schedule: "daily", Prompt: "y",
	})
	require.NoError(t, err)

	due, err := st.DueTasks(ctx, time.Date(2026, 4, 2, 8, 15, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "overdue", due[0].Name)
}
