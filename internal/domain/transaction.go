package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one row of the append-only transfer log.
type Transaction struct {
	ID            string          `json:"id"`
	FromAddress   string          `json:"from"`
	ToAddress     string          `json:"to"`
	Amount        decimal.Decimal `json:"amount"`
	Token         string          `json:"token"`
	TxHash        string          `json:"tx_hash"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	GasFee        decimal.Decimal `json:"gas_fee"`
	CreatedAt     time.Time       `json:"created_at"`
}
