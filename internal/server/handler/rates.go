package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// RateService defines the conversion the rates handler requires.
type RateService interface {
	ConvertIDR(ctx context.Context, amountIDR float64) (amountUSDC, rate float64, err error)
}

// RateHandler serves the fiat conversion endpoint.
type RateHandler struct {
	rates  RateService
	logger *slog.Logger
}

// NewRateHandler creates a RateHandler.
func NewRateHandler(rates RateService, logger *slog.Logger) *RateHandler {
	return &RateHandler{
		rates:  rates,
		logger: logger,
	}
}

type convertRequest struct {
	AmountIDR float64 `json:"amount_idr"`
}

// Convert converts a rupiah amount to USDC at the current rate.
// POST /api/rates
func (h *RateHandler) Convert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.AmountIDR <= 0 {
		writeError(w, http.StatusBadRequest, "amount_idr must be positive")
		return
	}

	usdc, rate, err := h.rates.ConvertIDR(r.Context(), req.AmountIDR)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]float64{
		"amount_idr":  req.AmountIDR,
		"amount_usdc": usdc,
		"rate":        rate,
	})
}
