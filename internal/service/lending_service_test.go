package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deqrypt/yieldrouter/internal/domain"
	"github.com/deqrypt/yieldrouter/internal/ledger"
)

// --- fakes ---

type memPositions struct {
	mu       sync.Mutex
	rows     map[string]domain.Position
	txHashes map[string]bool
}

func newMemPositions() *memPositions {
	return &memPositions{
		rows:     map[string]domain.Position{},
		txHashes: map[string]bool{},
	}
}

func (m *memPositions) Create(ctx context.Context, pos domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pos.TxHash != "" && m.txHashes[pos.TxHash] {
		return domain.ErrAlreadyExists
	}
	m.rows[pos.ID] = pos
	if pos.TxHash != "" {
		m.txHashes[pos.TxHash] = true
	}
	return nil
}

func (m *memPositions) GetByID(ctx context.Context, id string) (domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.rows[id]
	if !ok {
		return domain.Position{}, domain.ErrPositionNotFound
	}
	return pos, nil
}

func (m *memPositions) GetOpen(ctx context.Context, wallet string) ([]domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Position
	for _, pos := range m.rows {
		if pos.Wallet == wallet && pos.Principal.Sign() > 0 {
			out = append(out, pos)
		}
	}
	return out, nil
}

func (m *memPositions) ReducePrincipal(ctx context.Context, id string, prev, next decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.rows[id]
	if !ok {
		return domain.ErrPositionNotFound
	}
	if !pos.Principal.Equal(prev) {
		return domain.ErrConflict
	}
	pos.Principal = next
	m.rows[id] = pos
	return nil
}

func (m *memPositions) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *memPositions) CountByWallet(ctx context.Context, wallet string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, pos := range m.rows {
		if pos.Wallet == wallet && pos.Principal.Sign() > 0 {
			n++
		}
	}
	return n, nil
}

type noopLocks struct{}

func (noopLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	return func() {}, nil
}

type memTxLog struct {
	mu   sync.Mutex
	rows []domain.Transaction
}

func (m *memTxLog) Insert(ctx context.Context, tx domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, tx)
	return nil
}

func (m *memTxLog) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Transaction(nil), m.rows...), nil
}

type staticPools struct {
	pools []domain.Pool
	err   error
}

func (s staticPools) TopPools(ctx context.Context) ([]domain.Pool, error) {
	return s.pools, s.err
}

type staticAdvisor struct {
	verdict domain.Verdict
	rec     domain.Recommendation
}

func (s staticAdvisor) Evaluate(ctx context.Context, protocol string, amount, apy float64) (domain.Verdict, error) {
	return s.verdict, nil
}

func (s staticAdvisor) Recommend(ctx context.Context, pools []domain.Pool, amount float64) (domain.Recommendation, error) {
	return s.rec, nil
}

type fakeChain struct {
	hash      string
	err       error
	withdrawn []decimal.Decimal
}

func (f *fakeChain) Deposit(ctx context.Context, protocol string, amount decimal.Decimal) (string, error) {
	return f.hash, f.err
}

func (f *fakeChain) Withdraw(ctx context.Context, protocol string, amount decimal.Decimal) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.withdrawn = append(f.withdrawn, amount)
	return f.hash, nil
}

func (f *fakeChain) WrapETH(ctx context.Context, amount decimal.Decimal) (string, error) {
	return f.hash, f.err
}

func (f *fakeChain) UnwrapETH(ctx context.Context, amount decimal.Decimal) (string, error) {
	return f.hash, f.err
}

func (f *fakeChain) Approve(ctx context.Context, token, spender string, amount decimal.Decimal) (string, error) {
	return f.hash, f.err
}

func (f *fakeChain) BalanceOf(ctx context.Context, address, token string) (decimal.Decimal, error) {
	return decimal.RequireFromString("1.5"), f.err
}

// --- setup ---

func newTestService(t *testing.T, adv domain.Advisor, chain domain.ChainExecutor, pools PoolProvider) (*LendingService, *memPositions, *memTxLog) {
	t.Helper()
	return newTestServiceCfg(t, adv, chain, pools, ledger.Config{DefaultAPY: 3.0})
}

func newTestServiceCfg(t *testing.T, adv domain.Advisor, chain domain.ChainExecutor, pools PoolProvider, cfg ledger.Config) (*LendingService, *memPositions, *memTxLog) {
	t.Helper()

	store := newMemPositions()
	txs := &memTxLog{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ldg := ledger.New(store, noopLocks{}, nil, cfg, logger)
	svc := NewLendingService(ldg, store, txs, pools, nil, adv, chain, nil, logger)
	return svc, store, txs
}

func safeAdvisor() staticAdvisor {
	return staticAdvisor{
		verdict: domain.Verdict{Safe: true, Reason: "ok"},
		rec:     domain.Recommendation{Protocol: "moonwell", Token: "USDC", APY: 5.0, Safe: true},
	}
}

// --- tests ---

func TestDepositRejectedByAdvisoryGate(t *testing.T) {
	adv := staticAdvisor{verdict: domain.Verdict{Safe: false, Reason: "APY 80.00% exceeds the 50% sanity ceiling"}}
	svc, store, txs := newTestService(t, adv, nil, staticPools{})

	_, err := svc.Deposit(context.Background(), DepositRequest{
		Wallet:   "0xabc",
		Protocol: "degen-pool",
		Token:    "USDC",
		Amount:   decimal.RequireFromString("100"),
		APY:      80,
	})

	var rejected *domain.AdvisoryRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Reason, "sanity ceiling")

	// Nothing persisted on rejection.
	count, _ := store.CountByWallet(context.Background(), "0xabc")
	assert.Zero(t, count)
	assert.Empty(t, txs.rows)
}

func TestDepositRecordOnlyFlow(t *testing.T) {
	svc, _, txs := newTestService(t, safeAdvisor(), nil, staticPools{})

	pos, err := svc.Deposit(context.Background(), DepositRequest{
		Wallet:   "0xabc",
		Protocol: "moonwell",
		Token:    "USDC",
		Amount:   decimal.RequireFromString("100"),
		APY:      5.2,
		TxHash:   "0xdeadbeef",
	})
	require.NoError(t, err)

	assert.Equal(t, "0xdeadbeef", pos.TxHash)
	assert.Equal(t, 5.2, pos.APYSnapshot)
	require.Len(t, txs.rows, 1)
	assert.Equal(t, "0xdeadbeef", txs.rows[0].TxHash)
}

func TestDepositExecutesOnChain(t *testing.T) {
	chain := &fakeChain{hash: "0xfeed"}
	svc, _, _ := newTestService(t, safeAdvisor(), chain, staticPools{})

	pos, err := svc.Deposit(context.Background(), DepositRequest{
		Wallet:   "0xabc",
		Protocol: "moonwell",
		Token:    "USDC",
		Amount:   decimal.RequireFromString("50"),
		APY:      5.0,
		Execute:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", pos.TxHash)
}

func TestDepositChainFailureLeavesNoPosition(t *testing.T) {
	chain := &fakeChain{err: &domain.OnChainError{Op: "deposit", Err: errors.New("rpc timeout")}}
	svc, store, _ := newTestService(t, safeAdvisor(), chain, staticPools{})

	_, err := svc.Deposit(context.Background(), DepositRequest{
		Wallet:   "0xabc",
		Protocol: "moonwell",
		Token:    "USDC",
		Amount:   decimal.RequireFromString("50"),
		APY:      5.0,
		Execute:  true,
	})

	var chainErr *domain.OnChainError
	require.ErrorAs(t, err, &chainErr)

	count, _ := store.CountByWallet(context.Background(), "0xabc")
	assert.Zero(t, count)
}

func TestDepositAutoRoutesThroughAdvisor(t *testing.T) {
	pools := staticPools{pools: []domain.Pool{{Protocol: "moonwell", APY: 5.0, Symbol: "USDC"}}}
	svc, _, _ := newTestService(t, safeAdvisor(), nil, pools)

	pos, err := svc.Deposit(context.Background(), DepositRequest{
		Wallet: "0xabc",
		Token:  "USDC",
		Amount: decimal.RequireFromString("100"),
		Auto:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "moonwell", pos.Protocol)
	assert.Equal(t, 5.0, pos.APYSnapshot)
}

func TestWithdrawFullExecutesChainLeg(t *testing.T) {
	chain := &fakeChain{hash: "0xfeed"}
	svc, _, _ := newTestService(t, safeAdvisor(), chain, staticPools{})

	pos, err := svc.Deposit(context.Background(), DepositRequest{
		Wallet:   "0xabc",
		Protocol: "moonwell",
		Token:    "USDC",
		Amount:   decimal.RequireFromString("100"),
		APY:      5.0,
		Execute:  true,
	})
	require.NoError(t, err)

	res, err := svc.Withdraw(context.Background(), WithdrawRequest{
		PositionID: pos.ID,
		Amount:     decimal.NewFromInt(-1),
		Execute:    true,
	})
	require.NoError(t, err)

	assert.True(t, res.Closed)
	// The on-chain leg received the full principal for the sentinel amount.
	require.Len(t, chain.withdrawn, 1)
	assert.True(t, chain.withdrawn[0].Equal(decimal.RequireFromString("100")))
}

func TestWithdrawChainLegCappedAtPrincipal(t *testing.T) {
	chain := &fakeChain{hash: "0xfeed"}
	svc, _, _ := newTestService(t, safeAdvisor(), chain, staticPools{})

	pos, err := svc.Deposit(context.Background(), DepositRequest{
		Wallet:   "0xabc",
		Protocol: "moonwell",
		Token:    "USDC",
		Amount:   decimal.RequireFromString("50"),
		APY:      5.0,
		Execute:  true,
	})
	require.NoError(t, err)

	// Requesting more than the principal caps both legs at the principal.
	res, err := svc.Withdraw(context.Background(), WithdrawRequest{
		PositionID: pos.ID,
		Amount:     decimal.RequireFromString("80"),
		Execute:    true,
	})
	require.NoError(t, err)

	assert.True(t, res.Withdrawn.Equal(decimal.RequireFromString("50")))
	assert.True(t, res.Closed)
	require.Len(t, chain.withdrawn, 1)
	assert.True(t, chain.withdrawn[0].Equal(decimal.RequireFromString("50")),
		"chain leg must match the reconciled amount, got %s", chain.withdrawn[0])
}

func TestWithdrawStrictRejectsBeforeChainLeg(t *testing.T) {
	chain := &fakeChain{hash: "0xfeed"}
	svc, _, _ := newTestServiceCfg(t, safeAdvisor(), chain, staticPools{},
		ledger.Config{DefaultAPY: 3.0, StrictAmounts: true})

	pos, err := svc.Deposit(context.Background(), DepositRequest{
		Wallet:   "0xabc",
		Protocol: "moonwell",
		Token:    "USDC",
		Amount:   decimal.RequireFromString("50"),
		APY:      5.0,
		Execute:  true,
	})
	require.NoError(t, err)

	_, err = svc.Withdraw(context.Background(), WithdrawRequest{
		PositionID: pos.ID,
		Amount:     decimal.RequireFromString("80"),
		Execute:    true,
	})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.Empty(t, chain.withdrawn, "no funds may move for a rejected withdrawal")
}

func TestRecommendIncludesProjections(t *testing.T) {
	pools := staticPools{pools: []domain.Pool{{Protocol: "moonwell", APY: 5.0, Symbol: "USDC"}}}
	svc, _, _ := newTestService(t, safeAdvisor(), nil, pools)

	res, err := svc.Recommend(context.Background(), decimal.RequireFromString("100"))
	require.NoError(t, err)

	assert.Equal(t, "moonwell", res.Recommendation.Protocol)
	require.Len(t, res.Projections, 3)
	// 100 at 5% for 365 days is 5.
	assert.True(t, res.Projections[2].Profit.Equal(decimal.RequireFromString("5")))
}

func TestSyncReportsCountAndBalance(t *testing.T) {
	chain := &fakeChain{hash: "0xfeed"}
	svc, _, _ := newTestService(t, safeAdvisor(), chain, staticPools{})

	_, err := svc.Deposit(context.Background(), DepositRequest{
		Wallet:   "0xabc",
		Protocol: "moonwell",
		Token:    "USDC",
		Amount:   decimal.RequireFromString("100"),
		APY:      5.0,
		TxHash:   "0x1",
	})
	require.NoError(t, err)

	res, err := svc.Sync(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.OpenPositions)
	assert.True(t, res.ChainBalance.Equal(decimal.RequireFromString("1.5")))
}
