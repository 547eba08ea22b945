package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/deqrypt/yieldrouter/internal/domain"
	"github.com/deqrypt/yieldrouter/internal/ledger"
	"github.com/deqrypt/yieldrouter/internal/money"
	"github.com/deqrypt/yieldrouter/internal/service"
)

// LendingService defines the methods the lending handler requires from the
// service layer.
type LendingService interface {
	Recommend(ctx context.Context, amount decimal.Decimal) (service.RecommendResult, error)
	Deposit(ctx context.Context, req service.DepositRequest) (domain.Position, error)
	Withdraw(ctx context.Context, req service.WithdrawRequest) (ledger.WithdrawResult, error)
	Info(ctx context.Context, wallet string) (service.PortfolioResult, error)
	Sync(ctx context.Context, wallet string) (service.SyncResult, error)
}

// LendingHandler serves the lending endpoints.
type LendingHandler struct {
	lending LendingService
	logger  *slog.Logger
}

// NewLendingHandler creates a LendingHandler.
func NewLendingHandler(lending LendingService, logger *slog.Logger) *LendingHandler {
	return &LendingHandler{
		lending: lending,
		logger:  logger,
	}
}

type recommendRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Recommend returns the advisor's protocol pick and profit projections.
// POST /api/lending/recommend
func (h *LendingHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.lending.Recommend(r.Context(), req.Amount)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Project computes linear profit estimates for standard horizons.
// GET /api/lending/project?amount=100&apy=5.2
func (h *LendingHandler) Project(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	amount, err := money.ParseAmount(q.Get("amount"))
	if err != nil || amount.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, "amount query parameter must be a positive number")
		return
	}

	apy, err := decimal.NewFromString(q.Get("apy"))
	if err != nil || apy.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, "apy query parameter must be a positive number")
		return
	}

	apyF, _ := apy.Float64()
	writeJSON(w, http.StatusOK, map[string]any{
		"amount":      amount,
		"apy":         apyF,
		"projections": service.Project(amount, apyF),
	})
}

type depositRequest struct {
	Wallet   string          `json:"wallet_address"`
	Protocol string          `json:"protocol"`
	Token    string          `json:"token"`
	Amount   decimal.Decimal `json:"amount"`
	APY      float64         `json:"apy"`
	TxHash   string          `json:"tx_hash"`
	Auto     bool            `json:"auto"`
	Execute  bool            `json:"execute"`
}

// Deposit records a deposit, optionally auto-routing and executing on-chain.
// POST /api/lending/deposit
func (h *LendingHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet_address is required")
		return
	}
	if !req.Auto && req.Protocol == "" {
		writeError(w, http.StatusBadRequest, "protocol is required unless auto is set")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	pos, err := h.lending.Deposit(r.Context(), service.DepositRequest{
		Wallet:   req.Wallet,
		Protocol: req.Protocol,
		Token:    req.Token,
		Amount:   req.Amount,
		APY:      req.APY,
		TxHash:   req.TxHash,
		Auto:     req.Auto,
		Execute:  req.Execute,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, pos)
}

type withdrawRequest struct {
	PositionID string `json:"position_id"`
	// Amount may be omitted or negative to withdraw the full position.
	Amount  *decimal.Decimal `json:"amount,omitempty"`
	Execute bool             `json:"execute"`
}

type withdrawResponse struct {
	PositionID string          `json:"position_id"`
	Withdrawn  decimal.Decimal `json:"withdrawn"`
	Profit     decimal.Decimal `json:"profit"`
	ProfitPct  decimal.Decimal `json:"profit_pct"`
	Remaining  decimal.Decimal `json:"remaining"`
	DaysHeld   int             `json:"days_held"`
	Closed     bool            `json:"closed"`
}

// Withdraw settles a partial or full withdrawal.
// POST /api/lending/withdraw
func (h *LendingHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.PositionID == "" {
		writeError(w, http.StatusBadRequest, "position_id is required")
		return
	}

	amount := decimal.NewFromInt(-1)
	if req.Amount != nil {
		amount = *req.Amount
	}

	res, err := h.lending.Withdraw(r.Context(), service.WithdrawRequest{
		PositionID: req.PositionID,
		Amount:     amount,
		Execute:    req.Execute,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, withdrawResponse{
		PositionID: res.Position.ID,
		Withdrawn:  res.Withdrawn,
		Profit:     res.Profit,
		ProfitPct:  res.ProfitPct,
		Remaining:  res.Remaining,
		DaysHeld:   res.DaysHeld,
		Closed:     res.Closed,
	})
}

type walletRequest struct {
	Wallet string `json:"wallet_address"`
}

// Info returns a wallet's portfolio with live-computed profit.
// POST /api/lending/info
func (h *LendingHandler) Info(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.decodeWallet(w, r)
	if !ok {
		return
	}

	info, err := h.lending.Info(r.Context(), wallet)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// Sync reconciles a wallet's ledger state against the chain.
// POST /api/lending/sync
func (h *LendingHandler) Sync(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.decodeWallet(w, r)
	if !ok {
		return
	}

	res, err := h.lending.Sync(r.Context(), wallet)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *LendingHandler) decodeWallet(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req walletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return "", false
	}
	if req.Wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet_address is required")
		return "", false
	}
	return req.Wallet, true
}
