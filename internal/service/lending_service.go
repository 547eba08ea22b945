// Package service composes the yield sources, advisory gate, on-chain
// executor, and position ledger into the application's use cases.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/deqrypt/yieldrouter/internal/domain"
	"github.com/deqrypt/yieldrouter/internal/ledger"
	"github.com/deqrypt/yieldrouter/internal/notify"
)

// PoolProvider supplies the current ranked set of trusted lending pools.
type PoolProvider interface {
	TopPools(ctx context.Context) ([]domain.Pool, error)
}

// RateProvider supplies the USDC/IDR display rate.
type RateProvider interface {
	USDCToIDR(ctx context.Context) (float64, error)
}

// Projection is the estimated profit for holding a principal at a fixed APY
// over a standard horizon.
type Projection struct {
	Label  string          `json:"label"`
	Days   int             `json:"days"`
	Profit decimal.Decimal `json:"profit"`
}

// projectionHorizons are the standard display horizons.
var projectionHorizons = []struct {
	label string
	days  int
}{
	{"2_months", 61},
	{"6_months", 182},
	{"1_year", 365},
}

// RecommendResult pairs the advisor's pick with profit projections for the
// intended amount.
type RecommendResult struct {
	Recommendation domain.Recommendation `json:"recommendation"`
	Projections    []Projection          `json:"projections"`
}

// DepositRequest describes a deposit. When Auto is set the protocol and APY
// come from the advisor; otherwise the caller supplies both and the advisory
// gate must pass. When Execute is set the on-chain leg runs first and its
// hash is recorded; otherwise TxHash is taken as a client-reported hash.
type DepositRequest struct {
	Wallet   string
	Protocol string
	Token    string
	Amount   decimal.Decimal
	APY      float64
	TxHash   string
	Auto     bool
	Execute  bool
}

// WithdrawRequest describes a withdrawal. A negative Amount withdraws the
// entire position. When Execute is set the on-chain leg runs first.
type WithdrawRequest struct {
	PositionID string
	Amount     decimal.Decimal
	Execute    bool
}

// PortfolioResult is a wallet's portfolio with the IDR display rate applied
// to the totals.
type PortfolioResult struct {
	domain.PortfolioInfo
	RateIDR           float64         `json:"rate_idr"`
	TotalDepositedIDR decimal.Decimal `json:"total_deposited_idr"`
	TotalProfitIDR    decimal.Decimal `json:"total_current_profit_idr"`
}

// SyncResult reports the reconciliation between the ledger and the chain
// for one wallet.
type SyncResult struct {
	Wallet        string          `json:"wallet_address"`
	OpenPositions int64           `json:"open_positions"`
	ChainBalance  decimal.Decimal `json:"chain_balance"`
}

// LendingService owns the deposit, withdraw, recommend, and portfolio use
// cases. The chain executor and notifier are optional; without a chain the
// service runs in record-only mode and trusts client-reported tx hashes.
type LendingService struct {
	ledger    *ledger.Ledger
	positions domain.PositionStore
	txs       domain.TransactionStore
	pools     PoolProvider
	rates     RateProvider
	advisor   domain.Advisor
	chain     domain.ChainExecutor
	notifier  *notify.Notifier
	logger    *slog.Logger
}

// NewLendingService creates a LendingService. chain, rates, and notifier
// may be nil.
func NewLendingService(
	ldg *ledger.Ledger,
	positions domain.PositionStore,
	txs domain.TransactionStore,
	pools PoolProvider,
	rates RateProvider,
	adv domain.Advisor,
	chain domain.ChainExecutor,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *LendingService {
	return &LendingService{
		ledger:    ldg,
		positions: positions,
		txs:       txs,
		pools:     pools,
		rates:     rates,
		advisor:   adv,
		chain:     chain,
		notifier:  notifier,
		logger:    logger,
	}
}

// Recommend returns the advisor's protocol pick for the amount, with profit
// projections at standard horizons.
func (s *LendingService) Recommend(ctx context.Context, amount decimal.Decimal) (RecommendResult, error) {
	if amount.Sign() <= 0 {
		return RecommendResult{}, fmt.Errorf("lending_service: recommend amount %s: %w", amount, domain.ErrInvalidAmount)
	}

	pools, err := s.pools.TopPools(ctx)
	if err != nil {
		return RecommendResult{}, fmt.Errorf("lending_service: fetch pools: %w", err)
	}

	amt, _ := amount.Float64()
	rec, err := s.advisor.Recommend(ctx, pools, amt)
	if err != nil {
		return RecommendResult{}, fmt.Errorf("lending_service: recommend: %w", err)
	}

	return RecommendResult{
		Recommendation: rec,
		Projections:    Project(amount, rec.APY),
	}, nil
}

// Project computes linear profit estimates for the standard horizons.
func Project(amount decimal.Decimal, apy float64) []Projection {
	out := make([]Projection, 0, len(projectionHorizons))
	for _, h := range projectionHorizons {
		out = append(out, Projection{
			Label:  h.label,
			Days:   h.days,
			Profit: ledger.ComputeProfit(amount, apy, h.days),
		})
	}
	return out
}

// Deposit runs the full deposit flow: resolve the target protocol and APY,
// pass the advisory gate, execute or accept the on-chain leg, and record
// the position. The ledger row is created only after a tx hash exists.
func (s *LendingService) Deposit(ctx context.Context, req DepositRequest) (domain.Position, error) {
	if req.Amount.Sign() <= 0 {
		return domain.Position{}, fmt.Errorf("lending_service: deposit amount %s: %w", req.Amount, domain.ErrInvalidAmount)
	}

	protocol := req.Protocol
	apy := req.APY

	if req.Auto {
		rec, err := s.Recommend(ctx, req.Amount)
		if err != nil {
			return domain.Position{}, err
		}
		protocol = rec.Recommendation.Protocol
		apy = rec.Recommendation.APY
	}

	amt, _ := req.Amount.Float64()
	verdict, err := s.advisor.Evaluate(ctx, protocol, amt, apy)
	if err != nil {
		return domain.Position{}, fmt.Errorf("lending_service: advisory gate: %w", err)
	}
	if !verdict.Safe {
		if s.notifier != nil {
			_ = s.notifier.AdvisoryRejected(ctx, req.Wallet, protocol, verdict.Reason)
		}
		return domain.Position{}, &domain.AdvisoryRejectedError{Reason: verdict.Reason}
	}

	txHash := req.TxHash
	if req.Execute {
		if s.chain == nil {
			return domain.Position{}, fmt.Errorf("lending_service: on-chain execution requested but no chain executor configured")
		}
		txHash, err = s.chain.Deposit(ctx, protocol, req.Amount)
		if err != nil {
			return domain.Position{}, fmt.Errorf("lending_service: deposit execution: %w", err)
		}
	}

	pos, err := s.ledger.Deposit(ctx, ledger.DepositParams{
		Wallet:          req.Wallet,
		Protocol:        protocol,
		Token:           req.Token,
		Amount:          req.Amount,
		APYSnapshot:     apy,
		AllowDefaultAPY: req.Auto,
		TxHash:          txHash,
	})
	if err != nil {
		return domain.Position{}, err
	}

	s.recordTransfer(ctx, domain.Transaction{
		FromAddress: req.Wallet,
		ToAddress:   protocol,
		Amount:      req.Amount,
		Token:       req.Token,
		TxHash:      txHash,
	})

	if s.notifier != nil {
		_ = s.notifier.PositionOpened(ctx, pos)
	}

	return pos, nil
}

// Withdraw runs the withdrawal flow and returns the reconciled result.
func (s *LendingService) Withdraw(ctx context.Context, req WithdrawRequest) (ledger.WithdrawResult, error) {
	if req.Execute {
		if s.chain == nil {
			return ledger.WithdrawResult{}, fmt.Errorf("lending_service: on-chain execution requested but no chain executor configured")
		}

		// The chain leg moves the amount the ledger will settle, not the raw
		// request, so capped or rejected withdrawals never move funds.
		pos, amount, err := s.ledger.ResolveWithdrawal(ctx, req.PositionID, req.Amount)
		if err != nil {
			return ledger.WithdrawResult{}, err
		}
		if _, err := s.chain.Withdraw(ctx, pos.Protocol, amount); err != nil {
			return ledger.WithdrawResult{}, fmt.Errorf("lending_service: withdraw execution: %w", err)
		}
	}

	res, err := s.ledger.Withdraw(ctx, ledger.WithdrawParams{
		PositionID: req.PositionID,
		Amount:     req.Amount,
	})
	if err != nil {
		return ledger.WithdrawResult{}, err
	}

	s.recordTransfer(ctx, domain.Transaction{
		FromAddress: res.Position.Protocol,
		ToAddress:   res.Position.Wallet,
		Amount:      res.Withdrawn,
		Token:       res.Position.Token,
	})

	if s.notifier != nil {
		_ = s.notifier.WithdrawalSettled(ctx, res.Position, res.Withdrawn, res.Profit, res.Closed)
	}

	return res, nil
}

// Info returns a wallet's portfolio with IDR display totals. A missing rate
// provider leaves the IDR fields zero.
func (s *LendingService) Info(ctx context.Context, wallet string) (PortfolioResult, error) {
	info, err := s.ledger.Info(ctx, wallet)
	if err != nil {
		return PortfolioResult{}, err
	}

	out := PortfolioResult{PortfolioInfo: info}

	if s.rates != nil {
		rate, err := s.rates.USDCToIDR(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "lending_service: idr rate unavailable",
				slog.String("error", err.Error()))
			return out, nil
		}
		r := decimal.NewFromFloat(rate)
		out.RateIDR = rate
		out.TotalDepositedIDR = info.TotalDeposited.Mul(r)
		out.TotalProfitIDR = info.TotalCurrentProfit.Mul(r)
	}

	return out, nil
}

// Sync reconciles a wallet against the chain: open position count from the
// ledger and the live on-chain balance. Without a chain executor the
// balance is reported as zero.
func (s *LendingService) Sync(ctx context.Context, wallet string) (SyncResult, error) {
	count, err := s.positions.CountByWallet(ctx, wallet)
	if err != nil {
		return SyncResult{}, fmt.Errorf("lending_service: count positions: %w", err)
	}

	res := SyncResult{Wallet: wallet, OpenPositions: count, ChainBalance: decimal.Zero}

	if s.chain != nil {
		bal, err := s.chain.BalanceOf(ctx, wallet, "")
		if err != nil {
			var chainErr *domain.OnChainError
			if errors.As(err, &chainErr) {
				s.logger.WarnContext(ctx, "lending_service: balance read failed",
					slog.String("wallet", wallet),
					slog.String("error", err.Error()))
				return res, nil
			}
			return SyncResult{}, err
		}
		res.ChainBalance = bal
	}

	return res, nil
}

// recordTransfer inserts a transfer-log row. Logging failures never fail
// the parent operation.
func (s *LendingService) recordTransfer(ctx context.Context, tx domain.Transaction) {
	if s.txs == nil {
		return
	}
	tx.ID = uuid.New().String()
	tx.CreatedAt = time.Now().UTC()
	if err := s.txs.Insert(ctx, tx); err != nil {
		s.logger.WarnContext(ctx, "lending_service: transfer log insert failed",
			slog.String("tx_hash", tx.TxHash),
			slog.String("error", err.Error()))
	}
}
