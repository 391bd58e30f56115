package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/mission-control/internal/middleware"
	"github.com/capitalize-ai/mission-control/internal/model"
	"github.com/capitalize-ai/mission-control/internal/service"
	"github.com/capitalize-ai/mission-control/pkg/logger"
)

// PersonaHandler handles persona endpoints.
type PersonaHandler struct {
	service *service.PersonaService
	logger  *logger.Logger
}

// NewPersonaHandler creates a new persona handler.
func NewPersonaHandler(svc *service.PersonaService, log *logger.Logger) *PersonaHandler {
	return &PersonaHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/v1/personas
func (h *PersonaHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)

	var req model.CreatePersonaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidatePersonaName(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateSystemPrompt(req.SystemPrompt); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	persona, err := h.service.Create(ctx, tenantID, &req)
	if err != nil {
		h.logger.Error("failed to create persona", zap.Error(err))
		writeStoreError(w, err, "failed to create persona")
		return
	}

	writeJSON(w, http.StatusCreated, persona)
}

// List handles GET /api/v1/personas
func (h *PersonaHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)

	personas, err := h.service.List(ctx, tenantID)
	if err != nil {
		h.logger.Error("failed to list personas", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list personas")
		return
	}

	writeJSON(w, http.StatusOK, model.ListPersonasResponse{
		Personas: personas,
		Total:    len(personas),
	})
}

// Get handles GET /api/v1/personas/{id}
func (h *PersonaHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	personaID := chi.URLParam(r, "id")

	persona, err := h.service.Get(ctx, tenantID, personaID)
	if err != nil {
		writeStoreError(w, err, "failed to get persona")
		return
	}

	writeJSON(w, http.StatusOK, persona)
}

// Update handles PUT /api/v1/personas/{id}
//
// Builtin personas cannot be updated.
func (h *PersonaHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	personaID := chi.URLParam(r, "id")

	var req model.UpdatePersonaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SystemPrompt != "" {
		if err := middleware.ValidateSystemPrompt(req.SystemPrompt); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	persona, err := h.service.Update(ctx, tenantID, personaID, &req)
	if err != nil {
		writeStoreError(w, err, "failed to update persona")
		return
	}

	writeJSON(w, http.StatusOK, persona)
}

// Delete handles DELETE /api/v1/personas/{id}
func (h *PersonaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	personaID := chi.URLParam(r, "id")

	if err := h.service.Delete(ctx, tenantID, personaID); err != nil {
		writeStoreError(w, err, "failed to delete persona")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Render handles POST /api/v1/personas/{id}/render
func (h *PersonaHandler) Render(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	personaID := chi.URLParam(r, "id")

	var req model.RenderPersonaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.service.Render(ctx, tenantID, personaID, &req)
	if err != nil {
		writeStoreError(w, err, "failed to render persona")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
