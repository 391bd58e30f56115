package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/capitalize-ai/mission-control/internal/model"
	"github.com/capitalize-ai/mission-control/internal/service"
	"github.com/capitalize-ai/mission-control/pkg/logger"
)

// BenchmarkHandler handles model benchmark endpoints.
type BenchmarkHandler struct {
	service *service.BenchmarkService
	logger  *logger.Logger
}

// NewBenchmarkHandler creates a new benchmark handler.
func NewBenchmarkHandler(svc *service.BenchmarkService, log *logger.Logger) *BenchmarkHandler {
	return &BenchmarkHandler{
		service: svc,
		logger:  log,
	}
}

// Models handles GET /api/v1/benchmarks/models
//
// ?compare=model1,model2 returns a side-by-side comparison instead of the
// plain list.
func (h *BenchmarkHandler) Models(w http.ResponseWriter, r *http.Request) {
	if compare := r.URL.Query().Get("compare"); compare != "" {
		names := strings.Split(compare, ",")
		writeJSON(w, http.StatusOK, h.service.Compare(names))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models": h.service.Models(),
	})
}

// Cost handles POST /api/v1/benchmarks/cost
func (h *BenchmarkHandler) Cost(w http.ResponseWriter, r *http.Request) {
	var req model.CostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.InputTokens < 0 || req.OutputTokens < 0 {
		writeError(w, http.StatusBadRequest, "token counts cannot be negative")
		return
	}

	cost, err := h.service.CalculateCost(req.Model, req.InputTokens, req.OutputTokens)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.CostResponse{
		Model: req.Model,
		Cost:  cost,
	})
}

// Recommend handles POST /api/v1/benchmarks/recommend
func (h *BenchmarkHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req model.RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.UseCase {
	case model.UseCaseCoding, model.UseCaseWriting, model.UseCaseChat, model.UseCaseAnalysis:
	default:
		writeError(w, http.StatusBadRequest, "unknown use case")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"recommendations": h.service.Recommend(&req),
	})
}
