package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents principal deposited into a lending protocol under a
// fixed APY snapshot. The APY and deposit timestamp are frozen at creation;
// only Principal is reduced by withdrawals. A position whose principal
// reaches zero is deleted from the store.
type Position struct {
	ID          string          `json:"id"`
	Wallet      string          `json:"wallet_address"`
	Protocol    string          `json:"protocol"`
	Token       string          `json:"token_symbol"`
	Principal   decimal.Decimal `json:"principal_amount"`
	APYSnapshot float64         `json:"apy_snapshot"`
	TxHash      string          `json:"tx_hash,omitempty"`
	DepositedAt time.Time       `json:"deposited_at"`
}

// PositionView is a Position annotated with live-computed profit figures.
// It is a pure projection; producing one never mutates the underlying row.
type PositionView struct {
	Position
	DaysHeld         int             `json:"days_held"`
	CurrentProfit    decimal.Decimal `json:"current_profit"`
	CurrentProfitPct decimal.Decimal `json:"current_profit_pct"`
}

// PortfolioInfo aggregates a wallet's open positions.
type PortfolioInfo struct {
	Wallet             string          `json:"wallet_address"`
	Positions          []PositionView  `json:"positions"`
	TotalDeposited     decimal.Decimal `json:"total_deposited"`
	TotalCurrentProfit decimal.Decimal `json:"total_current_profit"`
}
