package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/deqrypt/yieldrouter/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a TransactionStore backed by the given pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Insert appends one transfer-log row.
func (s *TransactionStore) Insert(ctx context.Context, tx domain.Transaction) error {
	const query = `
		INSERT INTO transactions (
			id, from_address, to_address, amount, token,
			tx_hash, invoice_number, gas_fee, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		tx.ID, strings.ToLower(tx.FromAddress), strings.ToLower(tx.ToAddress),
		tx.Amount.String(), tx.Token,
		tx.TxHash, tx.InvoiceNumber, tx.GasFee.String(), tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert transaction %s: %w", tx.ID, err)
	}
	return nil
}

// ListByWallet returns transfers involving the wallet on either side,
// newest first, with pagination and optional time filtering.
func (s *TransactionStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.Transaction, error) {
	query := `
		SELECT id, from_address, to_address, amount::text, token,
		       tx_hash, COALESCE(invoice_number, ''), gas_fee::text, created_at
		FROM transactions
		WHERE LOWER(from_address) = LOWER($1) OR LOWER(to_address) = LOWER($1)`
	args := []any{wallet}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var amount, gasFee string

		if err := rows.Scan(
			&tx.ID, &tx.FromAddress, &tx.ToAddress, &amount, &tx.Token,
			&tx.TxHash, &tx.InvoiceNumber, &gasFee, &tx.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("postgres: parse amount %q: %w", amount, err)
		}
		if tx.GasFee, err = decimal.NewFromString(gasFee); err != nil {
			return nil, fmt.Errorf("postgres: parse gas fee %q: %w", gasFee, err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan transactions: %w", err)
	}
	return txs, nil
}

// Compile-time interface check.
var _ domain.TransactionStore = (*TransactionStore)(nil)
