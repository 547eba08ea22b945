// Package money converts between human-readable decimal amounts and the
// fixed-point integer base units used at the on-chain boundary. All
// arithmetic is exact decimal; float64 never touches an amount.
package money

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/deqrypt/yieldrouter/internal/domain"
)

// ToBaseUnits converts a decimal asset amount into integer base units scaled
// by the token's decimal count, rounding half-up on any residue beyond the
// token's precision. It rejects negative amounts with ErrInvalidAmount.
func ToBaseUnits(amount decimal.Decimal, decimals int) (*big.Int, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("money: negative decimals %d: %w", decimals, domain.ErrInvalidAmount)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("money: negative amount %s: %w", amount, domain.ErrInvalidAmount)
	}

	scaled := amount.Shift(int32(decimals)).Round(0)
	return scaled.BigInt(), nil
}

// FromBaseUnits is the exact inverse of ToBaseUnits.
func FromBaseUnits(units *big.Int, decimals int) decimal.Decimal {
	if units == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(units, 0).Shift(int32(-decimals))
}

// ParseAmount parses a decimal string and validates it is a finite,
// non-negative quantity.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: parse %q: %w", s, domain.ErrInvalidAmount)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("money: negative amount %q: %w", s, domain.ErrInvalidAmount)
	}
	return d, nil
}
