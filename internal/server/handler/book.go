package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/execlab/tradecost/internal/domain"
	"github.com/execlab/tradecost/internal/service"
)

// BookHandler serves read-only views of the tracked orderbooks.
type BookHandler struct {
	svc    *service.CostService
	logger *slog.Logger
}

// NewBookHandler creates a BookHandler backed by the given service.
func NewBookHandler(svc *service.CostService, logger *slog.Logger) *BookHandler {
	return &BookHandler{
		svc:    svc,
		logger: logHandler(logger, "books"),
	}
}

// ListBooks returns the symbols with an active book.
// GET /api/books
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	symbols := h.svc.Symbols()
	writeJSON(w, http.StatusOK, map[string]any{
		"symbols": symbols,
		"count":   len(symbols),
	})
}

// GetBook returns a point-in-time snapshot of one symbol's book. The optional
// depth query parameter caps the number of levels returned per side.
// GET /api/books/{symbol}
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	symbol := pathParam(r, "symbol")

	snap, err := h.svc.Snapshot(symbol)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown symbol: "+symbol)
			return
		}
		h.logger.Error("snapshot failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read book")
		return
	}

	if v := r.URL.Query().Get("depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "depth must be a positive integer")
			return
		}
		if n < len(snap.Bids) {
			snap.Bids = snap.Bids[:n]
		}
		if n < len(snap.Asks) {
			snap.Asks = snap.Asks[:n]
		}
	}

	writeJSON(w, http.StatusOK, snap)
}
