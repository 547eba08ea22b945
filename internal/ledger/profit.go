// Package ledger owns the deposit-position lifecycle: creation on deposit,
// linear-interest profit accrual on read, and strict reconciliation of
// partial and full withdrawals.
package ledger

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// daysPerYear is the accrual basis for the linear (non-compounding) model.
const daysPerYear = 365

var (
	hundred  = decimal.NewFromInt(100)
	yearDays = decimal.NewFromInt(daysPerYear)
)

// ComputeProfit returns simple linear interest on principal:
// principal * (apyPercent / 100) * (daysElapsed / 365). Negative elapsed
// time (clock skew, malformed timestamps) is clamped to zero days so profit
// can never be negative.
func ComputeProfit(principal decimal.Decimal, apyPercent float64, daysElapsed int) decimal.Decimal {
	if daysElapsed < 0 {
		daysElapsed = 0
	}
	if principal.Sign() <= 0 || apyPercent <= 0 || daysElapsed == 0 {
		return decimal.Zero
	}

	rate := decimal.NewFromFloat(apyPercent).Div(hundred)
	period := decimal.NewFromInt(int64(daysElapsed)).Div(yearDays)
	return principal.Mul(rate).Mul(period)
}

// ComputeProfitPercent returns profit as a percentage of principal, or zero
// when principal is not positive.
func ComputeProfitPercent(profit, principal decimal.Decimal) decimal.Decimal {
	if principal.Sign() <= 0 {
		return decimal.Zero
	}
	return profit.Div(principal).Mul(hundred)
}

// DaysSince returns the whole number of days between depositedAt and now,
// clamped to zero. A zero deposit timestamp yields zero days: profit display
// must never block a withdrawal, so missing timestamps fail soft.
func DaysSince(depositedAt, now time.Time) int {
	if depositedAt.IsZero() {
		return 0
	}
	days := int(now.Sub(depositedAt).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// ParseDepositTime parses a timestamp that may arrive as RFC 3339 or as
// epoch seconds, the two forms deposit records and time filters show up in.
// Unparseable input yields the zero time, which DaysSince treats as zero
// elapsed days.
func ParseDepositTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC()
	}
	return time.Time{}
}
