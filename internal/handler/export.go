package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/mission-control/internal/middleware"
	"github.com/capitalize-ai/mission-control/internal/service"
	"github.com/capitalize-ai/mission-control/pkg/logger"
)

// maxImportSize bounds the accepted import payload (8MB).
const maxImportSize = 8 << 20

// ExportHandler handles conversation export and import.
type ExportHandler struct {
	service *service.ExportService
	logger  *logger.Logger
}

// NewExportHandler creates a new export handler.
func NewExportHandler(svc *service.ExportService, log *logger.Logger) *ExportHandler {
	return &ExportHandler{
		service: svc,
		logger:  log,
	}
}

// Export handles GET /api/v1/conversations/{id}/export?format=json|markdown
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	switch format {
	case "json":
		doc, err := h.service.ExportJSON(ctx, tenantID, conversationID)
		if err != nil {
			writeStoreError(w, err, "failed to export conversation")
			return
		}
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="conversation-%s.json"`, conversationID))
		writeJSON(w, http.StatusOK, doc)

	case "markdown":
		md, err := h.service.ExportMarkdown(ctx, tenantID, conversationID)
		if err != nil {
			writeStoreError(w, err, "failed to export conversation")
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="conversation-%s.md"`, conversationID))
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, md)

	default:
		writeError(w, http.StatusBadRequest, "unsupported format")
	}
}

// Import handles POST /api/v1/conversations/import
func (h *ExportHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)

	var userID *string
	if id := middleware.GetUserID(ctx); id != "" {
		userID = &id
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	conv, err := h.service.ImportJSON(ctx, tenantID, userID, raw)
	if err != nil {
		h.logger.Warn("conversation import rejected", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}
