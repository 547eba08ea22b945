package notify

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/deqrypt/yieldrouter/internal/domain"
)

// Event types the notifier can filter on.
const (
	EventPositionOpened = "position_opened"
	EventWithdrawal     = "withdrawal"
	EventPositionClosed = "position_closed"
	EventAdvisoryReject = "advisory_rejected"
)

// PositionOpened announces a new lending position.
func (n *Notifier) PositionOpened(ctx context.Context, pos domain.Position) error {
	title := "Position opened"
	message := fmt.Sprintf("wallet %s deposited %s %s into %s at %.2f%% APY",
		pos.Wallet, pos.Principal.String(), pos.Token, pos.Protocol, pos.APYSnapshot)
	return n.Notify(ctx, EventPositionOpened, title, message)
}

// WithdrawalSettled announces a partial or full withdrawal with its realized
// profit.
func (n *Notifier) WithdrawalSettled(ctx context.Context, pos domain.Position, withdrawn, profit decimal.Decimal, closed bool) error {
	event := EventWithdrawal
	title := "Withdrawal settled"
	if closed {
		event = EventPositionClosed
		title = "Position closed"
	}
	message := fmt.Sprintf("wallet %s withdrew %s %s from %s, profit %s",
		pos.Wallet, withdrawn.String(), pos.Token, pos.Protocol, profit.String())
	return n.Notify(ctx, event, title, message)
}

// AdvisoryRejected announces that the safety gate blocked a deposit.
func (n *Notifier) AdvisoryRejected(ctx context.Context, wallet, protocol, reason string) error {
	title := "Deposit blocked"
	message := fmt.Sprintf("wallet %s deposit into %s rejected: %s", wallet, protocol, reason)
	return n.Notify(ctx, EventAdvisoryReject, title, message)
}
