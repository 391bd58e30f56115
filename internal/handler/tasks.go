package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/mission-control/internal/middleware"
	"github.com/capitalize-ai/mission-control/internal/model"
	"github.com/capitalize-ai/mission-control/internal/scheduler"
	"github.com/capitalize-ai/mission-control/pkg/logger"
)

// TaskHandler handles scheduled task endpoints.
type TaskHandler struct {
	scheduler *scheduler.Scheduler
	logger    *logger.Logger
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(sched *scheduler.Scheduler, log *logger.Logger) *TaskHandler {
	return &TaskHandler{
		scheduler: sched,
		logger:    log,
	}
}

// Create handles POST /api/v1/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)

	var req model.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateTaskName(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt cannot be empty")
		return
	}

	task, err := h.scheduler.CreateTask(ctx, tenantID, &req)
	if err != nil {
		if serr := scheduler.ValidateSchedule(req.Schedule); serr != nil {
			writeError(w, http.StatusBadRequest, serr.Error())
			return
		}
		h.logger.Error("failed to create task", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// List handles GET /api/v1/tasks
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)

	resp, err := h.scheduler.ListTasks(ctx, tenantID)
	if err != nil {
		h.logger.Error("failed to list tasks", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	taskID := chi.URLParam(r, "id")

	task, err := h.scheduler.GetTask(ctx, tenantID, taskID)
	if err != nil {
		writeStoreError(w, err, "failed to get task")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Update handles PUT /api/v1/tasks/{id}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	taskID := chi.URLParam(r, "id")

	var req model.UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Schedule != "" {
		if err := scheduler.ValidateSchedule(req.Schedule); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	task, err := h.scheduler.UpdateTask(ctx, tenantID, taskID, &req)
	if err != nil {
		writeStoreError(w, err, "failed to update task")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Delete handles DELETE /api/v1/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	taskID := chi.URLParam(r, "id")

	if err := h.scheduler.DeleteTask(ctx, tenantID, taskID); err != nil {
		writeStoreError(w, err, "failed to delete task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Run handles POST /api/v1/tasks/{id}/run
//
// Executes the task immediately, outside its schedule.
func (h *TaskHandler) Run(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	taskID := chi.URLParam(r, "id")

	task, err := h.scheduler.GetTask(ctx, tenantID, taskID)
	if err != nil {
		writeStoreError(w, err, "failed to get task")
		return
	}

	run := h.scheduler.RunTask(ctx, task)
	writeJSON(w, http.StatusOK, run)
}

// ListRuns handles GET /api/v1/tasks/{id}/runs
func (h *TaskHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	taskID := chi.URLParam(r, "id")

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	resp, err := h.scheduler.ListRuns(ctx, tenantID, taskID, limit)
	if err != nil {
		writeStoreError(w, err, "failed to list runs")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
