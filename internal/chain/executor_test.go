package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTxDynamicFee(t *testing.T) {
	to := common.HexToAddress("0x4200000000000000000000000000000000000006")
	baseFee := big.NewInt(100)
	tipCap := big.NewInt(2)

	tx := buildTx(big.NewInt(8453), 7, to, big.NewInt(1000), nil, gasLimitTransfer, baseFee, tipCap, nil)

	require.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(gasLimitTransfer), tx.Gas())
	assert.Zero(t, tx.GasTipCap().Cmp(tipCap))
	// Fee cap is tip + 2x base fee.
	assert.Zero(t, tx.GasFeeCap().Cmp(big.NewInt(202)))
}

// Endpoints that predate EIP-1559 report no base fee in the head block; the
// executor must fall back to a legacy gas-priced transaction instead of
// dereferencing the missing fee.
func TestBuildTxLegacyFallback(t *testing.T) {
	to := common.HexToAddress("0x4200000000000000000000000000000000000006")
	gasPrice := big.NewInt(50)

	tx := buildTx(big.NewInt(8453), 7, to, big.NewInt(1000), nil, gasLimitTransfer, nil, nil, gasPrice)

	require.Equal(t, uint8(types.LegacyTxType), tx.Type())
	assert.Zero(t, tx.GasPrice().Cmp(gasPrice))
	assert.Equal(t, big.NewInt(1000), tx.Value())
}
