package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deqrypt/yieldrouter/internal/domain"
)

const defaultHistoryLimit = 50

// TransactionService records and lists the transfer history.
type TransactionService struct {
	txs domain.TransactionStore
}

// NewTransactionService creates a TransactionService.
func NewTransactionService(txs domain.TransactionStore) *TransactionService {
	return &TransactionService{txs: txs}
}

// Record inserts a transfer-log row, assigning its id and timestamp.
func (s *TransactionService) Record(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	if tx.Amount.Sign() <= 0 {
		return domain.Transaction{}, fmt.Errorf("transaction_service: amount %s: %w", tx.Amount, domain.ErrInvalidAmount)
	}
	if strings.TrimSpace(tx.FromAddress) == "" || strings.TrimSpace(tx.ToAddress) == "" {
		return domain.Transaction{}, fmt.Errorf("transaction_service: from and to addresses are required")
	}

	tx.ID = uuid.New().String()
	tx.CreatedAt = time.Now().UTC()

	if err := s.txs.Insert(ctx, tx); err != nil {
		return domain.Transaction{}, err
	}
	return tx, nil
}

// History returns transfers involving the wallet, newest first. A zero or
// negative limit falls back to the default page size.
func (s *TransactionService) History(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.Transaction, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultHistoryLimit
	}
	return s.txs.ListByWallet(ctx, wallet, opts)
}
