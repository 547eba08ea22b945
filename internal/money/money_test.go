package money

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deqrypt/yieldrouter/internal/domain"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int
		want     string
		wantErr  error
	}{
		{name: "one ether to wei", amount: "1", decimals: 18, want: "1000000000000000000"},
		{name: "fractional ether", amount: "0.5", decimals: 18, want: "500000000000000000"},
		{name: "usdc six decimals", amount: "100.25", decimals: 6, want: "100250000"},
		{name: "smallest unit", amount: "0.000001", decimals: 6, want: "1"},
		{name: "zero", amount: "0", decimals: 18, want: "0"},
		{name: "rounds sub-precision residue", amount: "0.0000015", decimals: 6, want: "2"},
		{name: "negative rejected", amount: "-1", decimals: 18, wantErr: domain.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount := decimal.RequireFromString(tt.amount)
			got, err := ToBaseUnits(amount, tt.decimals)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestToBaseUnitsNegativeDecimals(t *testing.T) {
	_, err := ToBaseUnits(decimal.NewFromInt(1), -1)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestFromBaseUnits(t *testing.T) {
	wei, ok := new(big.Int).SetString("1234500000000000000", 10)
	require.True(t, ok)

	got := FromBaseUnits(wei, 18)
	assert.True(t, got.Equal(decimal.RequireFromString("1.2345")), "got %s", got)

	assert.True(t, FromBaseUnits(nil, 18).IsZero())
}

func TestRoundTrip(t *testing.T) {
	// fromBaseUnits(toBaseUnits(x, d), d) == x for x representable in d digits.
	cases := []struct {
		amount   string
		decimals int
	}{
		{"0", 18},
		{"1", 18},
		{"0.000000000000000001", 18},
		{"123456.789012", 6},
		{"0.01", 2},
		{"99999999.999999999999999999", 18},
	}

	for _, c := range cases {
		amount := decimal.RequireFromString(c.amount)
		units, err := ToBaseUnits(amount, c.decimals)
		require.NoError(t, err)
		back := FromBaseUnits(units, c.decimals)
		assert.True(t, back.Equal(amount), "round trip %s/%d: got %s", c.amount, c.decimals, back)
	}
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount("12.5")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("12.5")))

	_, err = ParseAmount("not-a-number")
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = ParseAmount("-3")
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}
