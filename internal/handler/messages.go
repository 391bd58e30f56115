package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/mission-control/internal/middleware"
	"github.com/capitalize-ai/mission-control/internal/model"
	"github.com/capitalize-ai/mission-control/internal/service"
	"github.com/capitalize-ai/mission-control/pkg/logger"
)

// MessageHandler handles message and branch endpoints.
type MessageHandler struct {
	service *service.MessageService
	logger  *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(svc *service.MessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		service: svc,
		logger:  log,
	}
}

// List handles GET /api/v1/conversations/{id}/messages
//
// By default only the active path is returned. ?branch= returns one branch's
// full path; ?all=true returns the whole tree.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	branch := q.Get("branch")
	all := false
	if a := q.Get("all"); a != "" {
		if parsed, err := strconv.ParseBool(a); err == nil {
			all = parsed
		}
	}

	resp, err := h.service.ListMessages(ctx, tenantID, conversationID, branch, all)
	if err != nil {
		writeStoreError(w, err, "failed to list messages")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Send handles POST /api/v1/conversations/{id}/messages
//
// Streaming requests are handled by the stream handler; this endpoint returns
// the full assistant reply in one response.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.Send(ctx, tenantID, conversationID, &req)
	if err != nil {
		h.logger.Error("failed to send message",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		writeStoreError(w, err, "failed to send message")
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Edit handles POST /api/v1/messages/{id}/edit
//
// Editing creates a sibling of the target message on a new branch and makes
// that branch active.
func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	messageID := chi.URLParam(r, "id")

	if err := middleware.ValidateMessageID(messageID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.BranchName != "" {
		if err := middleware.ValidateBranchName(req.BranchName); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	msg, err := h.service.EditMessage(ctx, tenantID, messageID, &req)
	if err != nil {
		writeStoreError(w, err, "failed to edit message")
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// ListBranches handles GET /api/v1/conversations/{id}/branches
func (h *MessageHandler) ListBranches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.ListBranches(ctx, tenantID, conversationID)
	if err != nil {
		writeStoreError(w, err, "failed to list branches")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// SwitchBranch handles POST /api/v1/conversations/{id}/branches/switch
func (h *MessageHandler) SwitchBranch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SwitchBranchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateBranchName(req.BranchName); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.SwitchBranch(ctx, tenantID, conversationID, req.BranchName)
	if err != nil {
		writeStoreError(w, err, "failed to switch branch")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
