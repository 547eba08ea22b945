package advisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deqrypt/yieldrouter/internal/domain"
)

func TestEvaluate(t *testing.T) {
	a := NewRuleAdvisor(0)
	ctx := context.Background()

	cases := []struct {
		name     string
		protocol string
		amount   float64
		apy      float64
		safe     bool
	}{
		{"trusted protocol passes", "moonwell", 100, 5.0, true},
		{"case insensitive protocol", "AAVE-V3", 100, 4.0, true},
		{"unknown protocol rejected", "shady-farm", 100, 5.0, false},
		{"empty protocol rejected", "", 100, 5.0, false},
		{"zero apy rejected", "spark", 100, 0, false},
		{"negative apy rejected", "spark", 100, -1, false},
		{"apy at ceiling passes", "spark", 100, 50.0, true},
		{"apy above ceiling rejected", "spark", 100, 50.01, false},
		{"zero amount rejected", "moonwell", 0, 5.0, false},
		{"negative amount rejected", "moonwell", -10, 5.0, false},
		{"amount over ceiling rejected", "moonwell", 2_000_000, 5.0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := a.Evaluate(ctx, tc.protocol, tc.amount, tc.apy)
			require.NoError(t, err)
			assert.Equal(t, tc.safe, v.Safe)
			assert.NotEmpty(t, v.Reason)
		})
	}
}

func TestEvaluateCustomCeiling(t *testing.T) {
	a := NewRuleAdvisor(500)

	v, err := a.Evaluate(context.Background(), "moonwell", 501, 5.0)
	require.NoError(t, err)
	assert.False(t, v.Safe)

	v, err = a.Evaluate(context.Background(), "moonwell", 500, 5.0)
	require.NoError(t, err)
	assert.True(t, v.Safe)
}

func TestRecommendPicksHighestSafeAPY(t *testing.T) {
	a := NewRuleAdvisor(0)

	pools := []domain.Pool{
		{Protocol: "degen-pool", APY: 80.0, TVL: 1000, Symbol: "USDC"},
		{Protocol: "aave-v3", APY: 4.2, TVL: 300_000_000, Symbol: "USDC"},
		{Protocol: "moonwell", APY: 6.1, TVL: 50_000_000, Symbol: "USDC"},
	}

	rec, err := a.Recommend(context.Background(), pools, 100)
	require.NoError(t, err)
	assert.Equal(t, "moonwell", rec.Protocol)
	assert.Equal(t, 6.1, rec.APY)
	assert.True(t, rec.Safe)
}

func TestRecommendNoSafePool(t *testing.T) {
	a := NewRuleAdvisor(0)

	pools := []domain.Pool{
		{Protocol: "degen-pool", APY: 80.0, Symbol: "USDC"},
	}

	_, err := a.Recommend(context.Background(), pools, 100)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExtractJSONBasic(t *testing.T) {
	assert.Equal(t, `{"is_safe":true}`, extractJSON("Sure! {\"is_safe\":true} Hope that helps."))
	assert.Equal(t, `{"a":{"b":1}}`, extractJSON(`{"a":{"b":1}}`))
	assert.Equal(t, "no json here", extractJSON("no json here"))
}
