package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/deqrypt/yieldrouter/internal/domain"
	"github.com/deqrypt/yieldrouter/internal/ledger"
)

// TransactionService defines the methods the transaction handler requires
// from the service layer.
type TransactionService interface {
	Record(ctx context.Context, tx domain.Transaction) (domain.Transaction, error)
	History(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.Transaction, error)
}

// TransactionHandler serves the transfer-log endpoints.
type TransactionHandler struct {
	txs    TransactionService
	logger *slog.Logger
}

// NewTransactionHandler creates a TransactionHandler.
func NewTransactionHandler(txs TransactionService, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		txs:    txs,
		logger: logger,
	}
}

type listTransactionsResponse struct {
	Transactions []domain.Transaction `json:"transactions"`
}

// List returns transfers involving a wallet, newest first. The since and
// until filters accept RFC 3339 timestamps or unix epoch seconds.
// GET /api/transactions?wallet=0x...&limit=50&offset=0&since=...&until=...
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	wallet := q.Get("wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet query parameter required")
		return
	}

	opts := parseListOpts(r)
	if t := ledger.ParseDepositTime(q.Get("since")); !t.IsZero() {
		opts.Since = &t
	}
	if t := ledger.ParseDepositTime(q.Get("until")); !t.IsZero() {
		opts.Until = &t
	}

	txs, err := h.txs.History(r.Context(), wallet, opts)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	if txs == nil {
		txs = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, listTransactionsResponse{Transactions: txs})
}

// Record inserts a transfer-log row from a JSON body.
// POST /api/transactions
func (h *TransactionHandler) Record(w http.ResponseWriter, r *http.Request) {
	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	recorded, err := h.txs.Record(r.Context(), tx)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, recorded)
}
