package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/execlab/tradecost/internal/domain"
	"github.com/execlab/tradecost/internal/service"
)

// EstimateHandler serves execution-cost estimates.
type EstimateHandler struct {
	svc    *service.CostService
	logger *slog.Logger
}

// NewEstimateHandler creates an EstimateHandler backed by the given service.
func NewEstimateHandler(svc *service.CostService, logger *slog.Logger) *EstimateHandler {
	return &EstimateHandler{
		svc:    svc,
		logger: logHandler(logger, "estimate"),
	}
}

// Estimate costs out a hypothetical order and returns the full report.
// POST /api/estimate
func (h *EstimateHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	var req domain.EstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	report, err := h.svc.EstimateOrder(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidParameter) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("estimate failed",
			slog.String("symbol", req.Symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to estimate order cost")
		return
	}

	writeJSON(w, http.StatusOK, report)
}
