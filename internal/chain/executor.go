// Package chain executes the on-chain legs of deposits and withdrawals
// against Base via an Ethereum JSON-RPC endpoint.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/deqrypt/yieldrouter/internal/domain"
	"github.com/deqrypt/yieldrouter/internal/money"
)

const (
	nativeDecimals = 18

	gasLimitTransfer = 21000
	gasLimitERC20    = 100000
	gasLimitWrap     = 60000
)

// erc20ABI covers the calls the executor makes against token contracts.
// WETH adds deposit and withdraw on top of the standard interface.
const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":false,"inputs":[],"name":"deposit","outputs":[],"payable":true,"type":"function"},
	{"constant":false,"inputs":[{"name":"wad","type":"uint256"}],"name":"withdraw","outputs":[],"type":"function"}
]`

// Config holds connection and signing parameters for the executor.
type Config struct {
	RPCURL     string
	PrivateKey string
	ChainID    int64
	WETH       string
	// Pools maps a protocol name to its pool contract address.
	Pools map[string]string
}

// Executor implements domain.ChainExecutor over go-ethereum. All amounts
// cross the boundary as decimals and are converted to base units here.
type Executor struct {
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	weth    common.Address
	pools   map[string]common.Address
	abi     abi.ABI
	logger  *slog.Logger
}

// New dials the RPC endpoint and prepares the signing key.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Executor, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cfg.RPCURL, err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("chain: parse private key: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("chain: parse abi: %w", err)
	}

	pools := make(map[string]common.Address, len(cfg.Pools))
	for name, addr := range cfg.Pools {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("chain: invalid pool address for %s: %s", name, addr)
		}
		pools[strings.ToLower(name)] = common.HexToAddress(addr)
	}

	return &Executor{
		client:  client,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: big.NewInt(cfg.ChainID),
		weth:    common.HexToAddress(cfg.WETH),
		pools:   pools,
		abi:     parsedABI,
		logger:  logger,
	}, nil
}

// Close releases the RPC connection.
func (e *Executor) Close() {
	e.client.Close()
}

// Address returns the operator wallet address.
func (e *Executor) Address() string {
	return e.from.Hex()
}

// Deposit sends the amount to the protocol's pool contract.
func (e *Executor) Deposit(ctx context.Context, protocol string, amount decimal.Decimal) (string, error) {
	pool, ok := e.pools[strings.ToLower(protocol)]
	if !ok {
		return "", &domain.OnChainError{Op: "deposit", Err: fmt.Errorf("no pool address for protocol %q", protocol)}
	}

	hash, err := e.sendNative(ctx, pool, amount, nil, gasLimitTransfer)
	if err != nil {
		return "", &domain.OnChainError{Op: "deposit", Err: err}
	}

	e.logger.InfoContext(ctx, "on-chain deposit sent",
		slog.String("protocol", protocol),
		slog.String("amount", amount.String()),
		slog.String("tx_hash", hash))
	return hash, nil
}

// Withdraw pulls the amount back from the protocol's pool contract.
func (e *Executor) Withdraw(ctx context.Context, protocol string, amount decimal.Decimal) (string, error) {
	pool, ok := e.pools[strings.ToLower(protocol)]
	if !ok {
		return "", &domain.OnChainError{Op: "withdraw", Err: fmt.Errorf("no pool address for protocol %q", protocol)}
	}

	units, err := money.ToBaseUnits(amount, nativeDecimals)
	if err != nil {
		return "", &domain.OnChainError{Op: "withdraw", Err: err}
	}

	data, err := e.abi.Pack("withdraw", units)
	if err != nil {
		return "", &domain.OnChainError{Op: "withdraw", Err: fmt.Errorf("pack withdraw: %w", err)}
	}

	hash, err := e.sendNative(ctx, pool, decimal.Zero, data, gasLimitERC20)
	if err != nil {
		return "", &domain.OnChainError{Op: "withdraw", Err: err}
	}

	e.logger.InfoContext(ctx, "on-chain withdrawal sent",
		slog.String("protocol", protocol),
		slog.String("amount", amount.String()),
		slog.String("tx_hash", hash))
	return hash, nil
}

// WrapETH deposits native ETH into the WETH contract.
func (e *Executor) WrapETH(ctx context.Context, amount decimal.Decimal) (string, error) {
	data, err := e.abi.Pack("deposit")
	if err != nil {
		return "", &domain.OnChainError{Op: "wrap", Err: fmt.Errorf("pack deposit: %w", err)}
	}

	hash, err := e.sendNative(ctx, e.weth, amount, data, gasLimitWrap)
	if err != nil {
		return "", &domain.OnChainError{Op: "wrap", Err: err}
	}
	return hash, nil
}

// UnwrapETH withdraws native ETH from the WETH contract.
func (e *Executor) UnwrapETH(ctx context.Context, amount decimal.Decimal) (string, error) {
	units, err := money.ToBaseUnits(amount, nativeDecimals)
	if err != nil {
		return "", &domain.OnChainError{Op: "unwrap", Err: err}
	}

	data, err := e.abi.Pack("withdraw", units)
	if err != nil {
		return "", &domain.OnChainError{Op: "unwrap", Err: fmt.Errorf("pack withdraw: %w", err)}
	}

	hash, err := e.sendNative(ctx, e.weth, decimal.Zero, data, gasLimitWrap)
	if err != nil {
		return "", &domain.OnChainError{Op: "unwrap", Err: err}
	}
	return hash, nil
}

// Approve grants the spender an allowance on the given ERC20 token.
func (e *Executor) Approve(ctx context.Context, token, spender string, amount decimal.Decimal) (string, error) {
	if !common.IsHexAddress(token) || !common.IsHexAddress(spender) {
		return "", &domain.OnChainError{Op: "approve", Err: fmt.Errorf("invalid token or spender address")}
	}

	units, err := money.ToBaseUnits(amount, nativeDecimals)
	if err != nil {
		return "", &domain.OnChainError{Op: "approve", Err: err}
	}

	data, err := e.abi.Pack("approve", common.HexToAddress(spender), units)
	if err != nil {
		return "", &domain.OnChainError{Op: "approve", Err: fmt.Errorf("pack approve: %w", err)}
	}

	hash, err := e.sendNative(ctx, common.HexToAddress(token), decimal.Zero, data, gasLimitERC20)
	if err != nil {
		return "", &domain.OnChainError{Op: "approve", Err: err}
	}
	return hash, nil
}

// BalanceOf reads a balance. An empty token reads the native balance.
func (e *Executor) BalanceOf(ctx context.Context, address, token string) (decimal.Decimal, error) {
	if !common.IsHexAddress(address) {
		return decimal.Zero, &domain.OnChainError{Op: "balance", Err: fmt.Errorf("invalid address %q", address)}
	}
	addr := common.HexToAddress(address)

	if token == "" {
		wei, err := e.client.BalanceAt(ctx, addr, nil)
		if err != nil {
			return decimal.Zero, &domain.OnChainError{Op: "balance", Err: err}
		}
		return money.FromBaseUnits(wei, nativeDecimals), nil
	}

	if !common.IsHexAddress(token) {
		return decimal.Zero, &domain.OnChainError{Op: "balance", Err: fmt.Errorf("invalid token address %q", token)}
	}

	data, err := e.abi.Pack("balanceOf", addr)
	if err != nil {
		return decimal.Zero, &domain.OnChainError{Op: "balance", Err: fmt.Errorf("pack balanceOf: %w", err)}
	}

	tokenAddr := common.HexToAddress(token)
	result, err := e.client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddr, Data: data}, nil)
	if err != nil {
		return decimal.Zero, &domain.OnChainError{Op: "balance", Err: err}
	}
	if len(result) == 0 {
		return decimal.Zero, nil
	}

	var units *big.Int
	if err := e.abi.UnpackIntoInterface(&units, "balanceOf", result); err != nil {
		return decimal.Zero, &domain.OnChainError{Op: "balance", Err: fmt.Errorf("unpack balanceOf: %w", err)}
	}
	if units == nil {
		return decimal.Zero, nil
	}
	return money.FromBaseUnits(units, nativeDecimals), nil
}

// sendNative builds, signs, and broadcasts a transaction carrying value
// and/or calldata to the given address.
func (e *Executor) sendNative(ctx context.Context, to common.Address, amount decimal.Decimal, data []byte, gasLimit uint64) (string, error) {
	value, err := money.ToBaseUnits(amount, nativeDecimals)
	if err != nil {
		return "", err
	}

	nonce, err := e.client.PendingNonceAt(ctx, e.from)
	if err != nil {
		return "", fmt.Errorf("pending nonce: %w", err)
	}

	head, err := e.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("latest header: %w", err)
	}

	var tipCap, gasPrice *big.Int
	if head.BaseFee != nil {
		tipCap, err = e.client.SuggestGasTipCap(ctx)
		if err != nil {
			return "", fmt.Errorf("suggest gas tip: %w", err)
		}
	} else {
		gasPrice, err = e.client.SuggestGasPrice(ctx)
		if err != nil {
			return "", fmt.Errorf("suggest gas price: %w", err)
		}
	}

	tx := buildTx(e.chainID, nonce, to, value, data, gasLimit, head.BaseFee, tipCap, gasPrice)

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(e.chainID), e.key)
	if err != nil {
		return "", fmt.Errorf("sign tx: %w", err)
	}

	if err := e.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send tx: %w", err)
	}

	return signed.Hash().Hex(), nil
}

// buildTx assembles the transaction envelope. Endpoints that report a base
// fee get a dynamic-fee transaction with the fee cap at tip + 2x base fee;
// endpoints without one fall back to a legacy gas-priced transaction.
func buildTx(chainID *big.Int, nonce uint64, to common.Address, value *big.Int, data []byte, gasLimit uint64, baseFee, tipCap, gasPrice *big.Int) *types.Transaction {
	if baseFee != nil {
		feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(baseFee, big.NewInt(2)))
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tipCap,
			GasFeeCap: feeCap,
			Gas:       gasLimit,
			To:        &to,
			Value:     value,
			Data:      data,
		})
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	})
}

// Compile-time interface check.
var _ domain.ChainExecutor = (*Executor)(nil)
