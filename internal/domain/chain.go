package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// ChainExecutor performs the on-chain legs of a deposit or withdrawal. The
// ledger treats each call as atomic: it persists state only after a
// transaction hash has been returned, and never interprets the hash beyond
// recording it.
type ChainExecutor interface {
	// Deposit sends amount of the asset to the protocol's lending pool and
	// returns the transaction hash.
	Deposit(ctx context.Context, protocol string, amount decimal.Decimal) (string, error)
	// Withdraw pulls amount back from the protocol to the operator wallet.
	Withdraw(ctx context.Context, protocol string, amount decimal.Decimal) (string, error)
	// WrapETH converts native ETH into WETH ahead of an ERC20 deposit.
	WrapETH(ctx context.Context, amount decimal.Decimal) (string, error)
	// UnwrapETH converts WETH back to native ETH after a withdrawal.
	UnwrapETH(ctx context.Context, amount decimal.Decimal) (string, error)
	// Approve grants the spender an ERC20 allowance for the given token.
	Approve(ctx context.Context, token, spender string, amount decimal.Decimal) (string, error)
	// BalanceOf reads the native or ERC20 balance of an address. An empty
	// token means the native asset.
	BalanceOf(ctx context.Context, address, token string) (decimal.Decimal, error)
}

// BlobWriter uploads binary objects (profile images) to object storage and
// returns a publicly addressable URL.
type BlobWriter interface {
	PutImage(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
