// Package advisor gates deposits behind a safety check and picks the best
// protocol for an intended amount. RuleAdvisor is deterministic; LLMAdvisor
// layers a language-model review on top and degrades to the rules when the
// model is unavailable.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/deqrypt/yieldrouter/internal/domain"
)

const (
	// maxSafeAPY rejects yields too good to be true.
	maxSafeAPY = 50.0

	// defaultAmountCeiling caps a single advisory-approved deposit.
	defaultAmountCeiling = 1_000_000.0
)

// allowedProtocols mirrors the trusted routing set. Anything else fails the
// advisory check regardless of its numbers.
var allowedProtocols = map[string]bool{
	"moonwell":    true,
	"aave-v3":     true,
	"compound-v3": true,
	"spark":       true,
}

// RuleAdvisor applies deterministic safety rules. It never returns an error
// from Evaluate; an unsafe transaction is a verdict, not a failure.
type RuleAdvisor struct {
	amountCeiling float64
}

// NewRuleAdvisor creates a RuleAdvisor. A non-positive ceiling falls back
// to the default.
func NewRuleAdvisor(amountCeiling float64) *RuleAdvisor {
	if amountCeiling <= 0 {
		amountCeiling = defaultAmountCeiling
	}
	return &RuleAdvisor{amountCeiling: amountCeiling}
}

// Evaluate checks protocol allow-listing, APY sanity, and amount bounds.
func (a *RuleAdvisor) Evaluate(ctx context.Context, protocol string, amount float64, currentAPY float64) (domain.Verdict, error) {
	if !allowedProtocols[strings.ToLower(protocol)] {
		return domain.Verdict{
			Safe:   false,
			Reason: fmt.Sprintf("protocol %q is not on the trusted list", protocol),
		}, nil
	}
	if currentAPY <= 0 {
		return domain.Verdict{
			Safe:   false,
			Reason: fmt.Sprintf("APY %.2f%% is not positive", currentAPY),
		}, nil
	}
	if currentAPY > maxSafeAPY {
		return domain.Verdict{
			Safe:   false,
			Reason: fmt.Sprintf("APY %.2f%% exceeds the %.0f%% sanity ceiling", currentAPY, maxSafeAPY),
		}, nil
	}
	if amount <= 0 {
		return domain.Verdict{
			Safe:   false,
			Reason: "amount must be positive",
		}, nil
	}
	if amount > a.amountCeiling {
		return domain.Verdict{
			Safe:   false,
			Reason: fmt.Sprintf("amount %.2f exceeds the %.0f ceiling", amount, a.amountCeiling),
		}, nil
	}

	return domain.Verdict{
		Safe:   true,
		Reason: fmt.Sprintf("%s at %.2f%% APY passes all safety rules", strings.ToLower(protocol), currentAPY),
	}, nil
}

// Recommend picks the highest-APY pool that passes Evaluate. Pools are
// expected pre-sorted by APY descending; the advisor re-checks each rather
// than trusting the order blindly.
func (a *RuleAdvisor) Recommend(ctx context.Context, pools []domain.Pool, amount float64) (domain.Recommendation, error) {
	var best *domain.Pool
	for i := range pools {
		v, err := a.Evaluate(ctx, pools[i].Protocol, amount, pools[i].APY)
		if err != nil {
			return domain.Recommendation{}, err
		}
		if !v.Safe {
			continue
		}
		if best == nil || pools[i].APY > best.APY {
			best = &pools[i]
		}
	}

	if best == nil {
		return domain.Recommendation{}, fmt.Errorf("advisor: no pool passes safety rules: %w", domain.ErrNotFound)
	}

	return domain.Recommendation{
		Protocol: best.Protocol,
		Token:    best.Symbol,
		APY:      best.APY,
		TVL:      best.TVL,
		Safe:     true,
		Reason:   fmt.Sprintf("highest APY among trusted pools at %.2f%%", best.APY),
	}, nil
}

// Compile-time interface check.
var _ domain.Advisor = (*RuleAdvisor)(nil)
