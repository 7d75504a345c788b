package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/execlab/tradecost/internal/domain"
	"github.com/execlab/tradecost/internal/service"
)

// SampleHandler records and lists observed slippage samples.
type SampleHandler struct {
	svc    *service.CostService
	logger *slog.Logger
}

// NewSampleHandler creates a SampleHandler backed by the given service.
func NewSampleHandler(svc *service.CostService, logger *slog.Logger) *SampleHandler {
	return &SampleHandler{
		svc:    svc,
		logger: logHandler(logger, "samples"),
	}
}

// RecordSample persists one observed fill.
// POST /api/samples
func (h *SampleHandler) RecordSample(w http.ResponseWriter, r *http.Request) {
	var sample domain.SlippageSample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.svc.RecordSample(r.Context(), sample); err != nil {
		if errors.Is(err, domain.ErrInvalidParameter) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("record sample failed",
			slog.String("symbol", sample.Symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to record sample")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

// ListSamples returns recent samples, most recent first. Defaults to 50, capped
// at 500 via the limit query parameter.
// GET /api/samples
func (h *SampleHandler) ListSamples(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 500)

	samples, err := h.svc.TrainingData(r.Context(), limit)
	if err != nil {
		h.logger.Error("list samples failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list samples")
		return
	}
	if samples == nil {
		samples = []domain.SlippageSample{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"samples": samples,
		"count":   len(samples),
	})
}
