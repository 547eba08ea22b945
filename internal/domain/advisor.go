package domain

import "context"

// Verdict is the advisory gate's decision on a proposed transaction. When
// Safe is false the Reason must be surfaced to the caller verbatim.
type Verdict struct {
	Safe   bool   `json:"is_safe"`
	Reason string `json:"reason"`
}

// Recommendation is the advisor's protocol pick for an intended deposit.
type Recommendation struct {
	Protocol string  `json:"protocol"`
	Token    string  `json:"token"`
	APY      float64 `json:"apy"`
	TVL      float64 `json:"tvl"`
	Safe     bool    `json:"is_safe"`
	Reason   string  `json:"reason"`
}

// Advisor evaluates transaction safety and recommends protocols. The caller
// only consumes the structured verdict; whether the implementation is a
// deterministic rule engine or an LLM-backed analyst is opaque to it.
type Advisor interface {
	Evaluate(ctx context.Context, protocol string, amount float64, currentAPY float64) (Verdict, error)
	Recommend(ctx context.Context, pools []Pool, amount float64) (Recommendation, error)
}
